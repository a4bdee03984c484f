package handlers

import (
	"net/http"

	"orgstock/internal/models"
	"orgstock/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CategoryHandlers handles category-related HTTP requests
type CategoryHandlers struct {
	categoryService services.CategoryService
}

// NewCategoryHandlers creates a new category handlers instance
func NewCategoryHandlers(categoryService services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{categoryService: categoryService}
}

// CreateCategoryRequest represents the category creation request payload
type CreateCategoryRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=500"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// UpdateCategoryRequest represents a partial category update.
// Sending "parent_id": null moves the category to the root.
type UpdateCategoryRequest struct {
	Name        *string             `json:"name" validate:"omitempty,max=100"`
	Description *string             `json:"description" validate:"omitempty,max=500"`
	ParentID    models.OptionalUUID `json:"parent_id"`
}

// ListCategories returns every category of the caller's organization ordered by name
func (h *CategoryHandlers) ListCategories(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	categories, err := h.categoryService.FindAll(c.Request().Context(), orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"categories": categories})
}

// GetCategoryTree returns the organization's categories nested under their parents
func (h *CategoryHandlers) GetCategoryTree(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	tree, err := h.categoryService.Tree(c.Request().Context(), orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"categories": tree})
}

// CreateCategory handles creating a new category
func (h *CategoryHandlers) CreateCategory(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	var req CreateCategoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	category, err := h.categoryService.Create(c.Request().Context(), orgID, &models.CategoryCreate{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, category)
}

// GetCategory handles getting category details by ID
func (h *CategoryHandlers) GetCategory(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	category, err := h.categoryService.FindByID(c.Request().Context(), orgID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

// UpdateCategory handles renaming, describing and reparenting a category
func (h *CategoryHandlers) UpdateCategory(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req UpdateCategoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	category, err := h.categoryService.Update(c.Request().Context(), orgID, id, &models.CategoryUpdate{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

// DeleteCategory removes a leaf category and detaches it from products
func (h *CategoryHandlers) DeleteCategory(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.categoryService.Delete(c.Request().Context(), orgID, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
