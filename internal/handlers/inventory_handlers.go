package handlers

import (
	"net/http"

	"orgstock/internal/models"
	"orgstock/internal/services"

	"github.com/labstack/echo/v4"
)

// InventoryHandlers exposes the stock ledger
type InventoryHandlers struct {
	inventoryService services.InventoryService
}

// NewInventoryHandlers creates a new inventory handlers instance
func NewInventoryHandlers(inventoryService services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{inventoryService: inventoryService}
}

// AdjustStockRequest represents a signed stock movement
type AdjustStockRequest struct {
	Type     models.InventoryLogType `json:"type" validate:"required,oneof=purchase consumption adjustment stocktake"`
	Quantity *int64                  `json:"quantity" validate:"required"`
	Note     *string                 `json:"note" validate:"omitempty,max=500"`
}

// AdjustStock applies a stock movement and returns the ledger entry it produced
func (h *InventoryHandlers) AdjustStock(c echo.Context) error {
	orgID, userID, err := tenant(c)
	if err != nil {
		return err
	}
	productID, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req AdjustStockRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	entry, err := h.inventoryService.AdjustStock(c.Request().Context(), orgID, productID, userID, &models.StockAdjustment{
		Type:     req.Type,
		Quantity: *req.Quantity,
		Note:     req.Note,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// GetProductLogs returns a product's ledger newest first, optionally bounded by start_date and end_date
func (h *InventoryHandlers) GetProductLogs(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	productID, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	start, end, err := dateRange(c)
	if err != nil {
		return respondError(c, err)
	}

	logs, err := h.inventoryService.GetProductInventoryLogs(c.Request().Context(), orgID, productID, start, end)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"logs": logs})
}

// ListInventoryLogs returns the organization's ledger with optional filters
func (h *InventoryHandlers) ListInventoryLogs(c echo.Context) error {
	orgID, _, err := tenant(c)
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return respondError(c, err)
	}
	start, end, err := dateRange(c)
	if err != nil {
		return respondError(c, err)
	}
	productID, err := queryUUID(c, "product_id")
	if err != nil {
		return respondError(c, err)
	}
	userID, err := queryUUID(c, "user_id")
	if err != nil {
		return respondError(c, err)
	}

	filter := &models.InventoryLogFilter{
		ProductID: productID,
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Limit:     limit,
		Offset:    offset,
	}
	if raw := c.QueryParam("type"); raw != "" {
		logType := models.InventoryLogType(raw)
		filter.Type = &logType
	}

	logs, err := h.inventoryService.ListInventoryLogs(c.Request().Context(), orgID, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}
