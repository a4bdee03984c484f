package handlers

import (
	"orgstock/internal/middleware"

	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Health     *HealthHandlers
	Categories *CategoryHandlers
	Products   *ProductHandlers
	Inventory  *InventoryHandlers
}

// RegisterRoutes mounts the health probes at the root and the versioned API
// behind the tenant context and role guards.
func RegisterRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", h.Health.HealthCheck)
	e.GET("/health/live", h.Health.LivenessCheck)

	v1 := middleware.VersionRoute(e, middleware.CurrentAPIVersion, middleware.TenantContext())
	viewer := middleware.RequireRole(middleware.RoleViewer)
	member := middleware.RequireRole(middleware.RoleMember)
	admin := middleware.RequireRole(middleware.RoleAdmin)

	v1.GET("/categories", h.Categories.ListCategories, viewer)
	v1.GET("/categories/tree", h.Categories.GetCategoryTree, viewer)
	v1.POST("/categories", h.Categories.CreateCategory, admin)
	v1.GET("/categories/:id", h.Categories.GetCategory, viewer)
	v1.PATCH("/categories/:id", h.Categories.UpdateCategory, admin)
	v1.DELETE("/categories/:id", h.Categories.DeleteCategory, admin)

	v1.GET("/products", h.Products.ListProducts, viewer)
	v1.POST("/products", h.Products.CreateProduct, admin)
	v1.GET("/products/:id", h.Products.GetProduct, viewer)
	v1.PATCH("/products/:id", h.Products.UpdateProduct, admin)
	v1.DELETE("/products/:id", h.Products.DeleteProduct, admin)
	v1.POST("/products/:id/image", h.Products.UploadProductImage, admin)

	v1.POST("/products/:id/adjust", h.Inventory.AdjustStock, member)
	v1.GET("/products/:id/logs", h.Inventory.GetProductLogs, viewer)
	v1.GET("/inventory-logs", h.Inventory.ListInventoryLogs, viewer)
}
