package handlers

import (
	"net/http"

	"orgstock/internal/common"
	"orgstock/internal/models"
	"orgstock/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// ProductHandlers handles HTTP requests for products
type ProductHandlers struct {
	productService services.ProductService
}

// NewProductHandlers creates a new product handlers instance
func NewProductHandlers(productService services.ProductService) *ProductHandlers {
	return &ProductHandlers{productService: productService}
}

// CreateProductRequest represents the product creation request payload
type CreateProductRequest struct {
	Name                 string           `json:"name" validate:"required,max=200"`
	Description          *string          `json:"description" validate:"omitempty,max=2000"`
	Brand                *string          `json:"brand" validate:"omitempty,max=100"`
	DefaultUnit          string           `json:"default_unit" validate:"required,max=20"`
	DefaultPurchasePrice *decimal.Decimal `json:"default_purchase_price"`
	CategoryIDs          []uuid.UUID      `json:"category_ids" validate:"max=50"`
	InitialQuantity      int64            `json:"initial_quantity" validate:"gte=0"`
}

// UpdateProductRequest represents a partial product update. Stock is changed
// through the adjust endpoint only.
type UpdateProductRequest struct {
	Name                 *string          `json:"name" validate:"omitempty,max=200"`
	Description          *string          `json:"description" validate:"omitempty,max=2000"`
	Brand                *string          `json:"brand" validate:"omitempty,max=100"`
	DefaultUnit          *string          `json:"default_unit" validate:"omitempty,max=20"`
	DefaultPurchasePrice *decimal.Decimal `json:"default_purchase_price"`
	CategoryIDs          *[]uuid.UUID     `json:"category_ids" validate:"omitempty,max=50"`
}

// ListProducts handles listing products with optional category and text filters
func (h *ProductHandlers) ListProducts(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return respondError(c, err)
	}
	categoryID, err := queryUUID(c, "category_id")
	if err != nil {
		return respondError(c, err)
	}

	products, err := h.productService.FindAll(c.Request().Context(), orgID, &models.ProductFilter{
		CategoryID: categoryID,
		Search:     c.QueryParam("search"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"products": products,
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateProduct handles creating a new product with its opening stock
func (h *ProductHandlers) CreateProduct(c echo.Context) error {
	orgID, userID, err := tenant(c)
	if err != nil {
		return err
	}
	var req CreateProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	product, err := h.productService.Create(c.Request().Context(), orgID, userID, &models.ProductCreate{
		Name:                 req.Name,
		Description:          common.TrimOptional(req.Description),
		Brand:                common.TrimOptional(req.Brand),
		DefaultUnit:          req.DefaultUnit,
		DefaultPurchasePrice: req.DefaultPurchasePrice,
		CategoryIDs:          req.CategoryIDs,
		InitialQuantity:      req.InitialQuantity,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, product)
}

// GetProduct handles getting product details by ID
func (h *ProductHandlers) GetProduct(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	product, err := h.productService.FindByID(c.Request().Context(), orgID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// UpdateProduct handles updating product details
func (h *ProductHandlers) UpdateProduct(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req UpdateProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	product, err := h.productService.Update(c.Request().Context(), orgID, id, &models.ProductUpdate{
		Name:                 req.Name,
		Description:          req.Description,
		Brand:                req.Brand,
		DefaultUnit:          req.DefaultUnit,
		DefaultPurchasePrice: req.DefaultPurchasePrice,
		CategoryIDs:          req.CategoryIDs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct handles deleting a product
func (h *ProductHandlers) DeleteProduct(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.productService.Delete(c.Request().Context(), orgID, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadProductImage stores the multipart "image" file and links it to the product
func (h *ProductHandlers) UploadProductImage(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return respondError(c, common.NewValidation("image", "multipart field image is required"))
	}
	src, err := file.Open()
	if err != nil {
		return respondError(c, common.NewValidation("image", "uploaded file could not be read"))
	}
	defer src.Close()

	product, err := h.productService.UploadImage(c.Request().Context(), orgID, id, file.Filename, src, file.Size)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}
