// Package scope provides the gorm scope every tenant-owned query must apply.
// Cross-tenant leakage is a correctness violation, so the scope refuses to
// run with a zero tenant id instead of matching nothing or everything.
package scope

import (
	"errors"

	"gorm.io/gorm"
)

// ErrMissingTenant is attached to queries built without a resolved tenant.
var ErrMissingTenant = errors.New("scope: query built without a tenant id")

// Tenant restricts a query to rows of one tenant.
func Tenant(tenantID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == 0 {
			db.AddError(ErrMissingTenant)
			return db
		}
		return db.Where("tenant_id = ?", tenantID)
	}
}
