package middleware

import (
	"github.com/labstack/echo/v4"
)

// CurrentAPIVersion is the only version the service exposes.
const CurrentAPIVersion = "v1"

// VersionHeader stamps every response with the API version that served it.
func VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-API-Version", version)
			return next(c)
		}
	}
}

// VersionRoute creates the route group for version with the version header applied.
func VersionRoute(e *echo.Echo, version string, m ...echo.MiddlewareFunc) *echo.Group {
	return e.Group("/"+version, append([]echo.MiddlewareFunc{VersionHeader(version)}, m...)...)
}
