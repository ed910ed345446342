// Package handler contains the HTTP handlers. Controllers only translate
// typed outcomes into responses; tenant resolution and permission decisions
// live in tenancy and rbac.
package handler

import (
	"github.com/labstack/echo/v4"

	"zenamanage/internal/tenancy"
)

var (
	resolver *tenancy.Resolver
	sessions *tenancy.Store
)

// Initialize wires the handlers' shared collaborators. Must be called before
// any route is served.
func Initialize(r *tenancy.Resolver, s *tenancy.Store) {
	resolver = r
	sessions = s
}

// currentUserID reads the authenticated user id set by AuthMiddleware.
func currentUserID(c echo.Context) (uint, bool) {
	id, ok := c.Get("user_id").(uint)
	return id, ok
}

// currentSession binds the session store to this request's session id.
func currentSession(c echo.Context) tenancy.SessionState {
	sid, _ := c.Get("session_id").(string)
	return sessions.Session(sid)
}

// activeTenantID reads the tenant id set by ResolveTenant.
func activeTenantID(c echo.Context) (uint, bool) {
	id, ok := c.Get("tenant_id").(uint)
	return id, ok
}
