package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"zenamanage/internal/apierr"
	"zenamanage/internal/httpx"
	"zenamanage/internal/rbac"
	"zenamanage/internal/tenancy"
	"zenamanage/pkg/logger"
	"zenamanage/prometheus"
)

// Context keys populated by ResolveTenant.
const (
	TenantIDKey   = "tenant_id"
	TenantRoleKey = "tenant_role"
	ResolutionKey = "tenant_resolution"
)

// ResolveTenant runs active-tenant resolution once per request and stores the
// outcome in the echo context. Routes behind it can rely on a tenant id being
// present; an exhausted resolution chain terminates the request here.
func ResolveTenant(resolver *tenancy.Resolver, sessions *tenancy.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			userID, ok := c.Get("user_id").(uint)
			if !ok {
				log.Error("Missing user id in context, is AuthMiddleware applied?")
				prometheus.RecordAuthError("missing_user_context")
				return httpx.Error(c, apierr.ErrUnauthenticated)
			}
			sessionID, _ := c.Get("session_id").(string)

			res, err := resolver.Resolve(c.Request().Context(), userID, sessions.Session(sessionID))
			if err != nil {
				log.Warn("Active tenant resolution failed", zap.Error(err))
				prometheus.RecordAuthError("no_active_tenant")
				return httpx.Error(c, err)
			}

			prometheus.RecordTenantResolution(string(res.Source))

			c.Set(TenantIDKey, res.TenantID)
			c.Set(TenantRoleKey, res.Role)
			c.Set(ResolutionKey, res)

			c.Set("logger", log.With(
				zap.Uint("tenant_id", res.TenantID),
				zap.String("tenant_role", res.Role),
			))

			return next(c)
		}
	}
}

// RequirePermission gates a route on the resolved role holding the given
// permission. Must run after ResolveTenant.
func RequirePermission(gate *rbac.Gate, permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			res, _ := c.Get(ResolutionKey).(*tenancy.Resolution)
			if err := gate.AuthorizeResolved(res, permission); err != nil {
				log.Warn("Permission denied",
					zap.String("permission", permission))
				prometheus.RecordPermissionDenied(permission)
				return httpx.Error(c, err)
			}

			return next(c)
		}
	}
}
