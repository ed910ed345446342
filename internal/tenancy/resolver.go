// Package tenancy resolves which tenant a request's data operations are
// scoped to. Resolution is a pure function of the user's membership rows and
// the session's explicit selection; the only write path is SelectTenant.
package tenancy

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"zenamanage/internal/apierr"
	"zenamanage/internal/model"
)

// Source records which step of the resolution chain produced the tenant.
type Source string

const (
	SourceSession Source = "session"
	SourceDefault Source = "default"
	SourceSole    Source = "sole"
	SourceLegacy  Source = "legacy"
)

// Resolution is the outcome of a successful resolve: exactly one tenant id,
// plus the role the user holds there. Role is empty on the legacy path, which
// predates memberships and carries no role.
type Resolution struct {
	TenantID uint
	Role     string
	Source   Source
}

// Resolver answers "which tenant is this request for" against the membership
// table, with the pre-migration users.tenant_id column as final fallback.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the active tenant for the user, first match wins:
// session selection backed by a membership, then the default membership,
// then a sole membership, then the legacy column. Exhausting the chain is
// ErrNoActiveTenant, never a silently picked tenant.
func (r *Resolver) Resolve(ctx context.Context, userID uint, sess SessionState) (*Resolution, error) {
	var memberships []model.Membership
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Find(&memberships).Error; err != nil {
		return nil, apierr.Internal("membership lookup failed", err)
	}

	if selected, ok, err := sess.SelectedTenant(ctx); err != nil {
		return nil, apierr.Internal("session read failed", err)
	} else if ok {
		for _, m := range memberships {
			if m.TenantID == selected {
				return &Resolution{TenantID: m.TenantID, Role: m.Role, Source: SourceSession}, nil
			}
		}
		// Stale selection (membership revoked since): ignore and fall
		// through rather than failing the request.
	}

	for _, m := range memberships {
		if m.IsDefault {
			return &Resolution{TenantID: m.TenantID, Role: m.Role, Source: SourceDefault}, nil
		}
	}

	if len(memberships) == 1 {
		m := memberships[0]
		return &Resolution{TenantID: m.TenantID, Role: m.Role, Source: SourceSole}, nil
	}

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.ErrUnauthenticated
		}
		return nil, apierr.Internal("user lookup failed", err)
	}
	if user.TenantID != nil {
		return &Resolution{TenantID: *user.TenantID, Source: SourceLegacy}, nil
	}

	return nil, apierr.ErrNoActiveTenant
}

// SelectTenant validates that the user holds an active membership in the
// target tenant, then overwrites the session selection. A rejected switch
// leaves any previous selection untouched.
func (r *Resolver) SelectTenant(ctx context.Context, userID uint, sess SessionState, tenantID uint) (*Resolution, error) {
	var m model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ? AND active = ?", userID, tenantID, true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.ErrNotAMember
		}
		return nil, apierr.Internal("membership lookup failed", err)
	}

	if err := sess.SetSelectedTenant(ctx, tenantID); err != nil {
		return nil, apierr.Internal("session write failed", err)
	}

	return &Resolution{TenantID: m.TenantID, Role: m.Role, Source: SourceSession}, nil
}
