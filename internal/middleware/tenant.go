package middleware

import (
	"net/http"

	"orgstock/internal/common"
	"orgstock/internal/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	HeaderOrgID   = "X-Org-ID"
	HeaderUserID  = "X-User-ID"
	HeaderOrgRole = "X-Org-Role"
)

// TenantContext reads the caller identity forwarded by the auth gateway and
// places it on the request context. Requests without an organization or user
// are rejected.
func TenantContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			orgHeader := req.Header.Get(HeaderOrgID)
			userHeader := req.Header.Get(HeaderUserID)
			if orgHeader == "" || userHeader == "" {
				return common.SendUnauthorizedError(c)
			}

			orgID, err := uuid.Parse(orgHeader)
			if err != nil {
				return common.SendValidationError(c, HeaderOrgID, "must be a valid UUID")
			}
			userID, err := uuid.Parse(userHeader)
			if err != nil {
				return common.SendValidationError(c, HeaderUserID, "must be a valid UUID")
			}

			role := req.Header.Get(HeaderOrgRole)
			if role == "" {
				role = RoleViewer
			}
			if _, ok := roleRank[role]; !ok {
				return common.SendValidationError(c, HeaderOrgRole, "unknown role")
			}

			ctx := common.WithTenant(req.Context(), orgID, userID, role)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(
				zap.String("org_id", orgID.String()),
				zap.String("user_id", userID.String()),
			))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// TenantFrom returns the organization and user of an authenticated request.
func TenantFrom(c echo.Context) (orgID, userID uuid.UUID, ok bool) {
	ctx := c.Request().Context()
	orgID, orgOK := common.GetOrgIDFromContext(ctx)
	userID, userOK := common.GetUserIDFromContext(ctx)
	return orgID, userID, orgOK && userOK
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Insufficient permissions", nil))
}
