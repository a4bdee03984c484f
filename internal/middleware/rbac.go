package middleware

import (
	"orgstock/internal/common"
	"orgstock/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Organization roles, lowest privilege first.
const (
	RoleViewer = "viewer"
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

var roleRank = map[string]int{
	RoleViewer: 0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// RoleAtLeast reports whether role grants everything min does.
func RoleAtLeast(role, min string) bool {
	have, ok := roleRank[role]
	if !ok {
		return false
	}
	return have >= roleRank[min]
}

// RequireRole rejects callers whose organization role ranks below min.
// It must run after TenantContext.
func RequireRole(min string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			role, ok := common.GetRoleFromContext(ctx)
			if !ok {
				return common.SendUnauthorizedError(c)
			}
			if !RoleAtLeast(role, min) {
				logger.FromContext(ctx).Info("role check failed",
					zap.String("role", role), zap.String("required", min), zap.String("path", c.Path()))
				return forbidden(c)
			}
			return next(c)
		}
	}
}
