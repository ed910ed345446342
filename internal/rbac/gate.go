package rbac

import (
	"context"

	"zenamanage/internal/apierr"
	"zenamanage/internal/tenancy"
)

// Gate decides whether a user may perform an action in their active tenant.
// It is invoked per request and never caches: role changes take effect on
// the next request.
type Gate struct {
	resolver *tenancy.Resolver
	table    Table
}

func NewGate(resolver *tenancy.Resolver, table Table) *Gate {
	return &Gate{resolver: resolver, table: table}
}

// Table exposes the injected role table, mainly for diagnostics endpoints.
func (g *Gate) Table() Table {
	return g.table
}

// Authorize resolves the active tenant, looks up the user's role there and
// checks it against the table. The legacy-column path carries no role, so it
// evaluates the empty role and is denied anything that needs a permission.
// Denials are apierr.ErrPermissionDenied; resolution failures pass through
// unchanged so callers can tell "no tenant" from "forbidden".
func (g *Gate) Authorize(ctx context.Context, userID uint, sess tenancy.SessionState, permission string) (*tenancy.Resolution, error) {
	res, err := g.resolver.Resolve(ctx, userID, sess)
	if err != nil {
		return nil, err
	}

	if !g.table.Allows(res.Role, permission) {
		return nil, apierr.ErrPermissionDenied
	}

	return res, nil
}

// AuthorizeResolved checks a permission against an already resolved tenant
// context, avoiding a second resolution inside the same request.
func (g *Gate) AuthorizeResolved(res *tenancy.Resolution, permission string) error {
	if res == nil {
		return apierr.ErrNoActiveTenant
	}
	if !g.table.Allows(res.Role, permission) {
		return apierr.ErrPermissionDenied
	}
	return nil
}
