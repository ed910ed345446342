// Package rbac gates (user, tenant, action) triples against a static
// role→permission table. The table is data, not code: it is loaded once at
// startup and injected into the gate, so role definitions can be tested and
// extended without touching the gate algorithm.
package rbac

import (
	"fmt"

	"github.com/spf13/viper"
)

// Permission strings checked by protected routes.
const (
	PermTenantView          = "tenant.view"
	PermTenantManage        = "tenant.manage"
	PermTenantManageMembers = "tenant.manage_members"
	PermTenantViewAnalytics = "tenant.view_analytics"
	PermProjectView         = "project.view"
	PermProjectManage       = "project.manage"
	PermTaskView            = "task.view"
	PermTaskManage          = "task.manage"
	PermClientView          = "client.view"
	PermClientManage        = "client.manage"
	PermQuoteView           = "quote.view"
	PermQuoteManage         = "quote.manage"
	PermDocumentView        = "document.view"
	PermDocumentManage      = "document.manage"
	PermTemplateView        = "template.view"
	PermTemplateManage      = "template.manage"
)

// Table maps role names to their granted permission sets. Roles absent from
// the table grant nothing.
type Table map[string]map[string]struct{}

// Allows reports whether the role grants the permission. Unknown roles and
// the empty role evaluate against the empty set.
func (t Table) Allows(role, permission string) bool {
	perms, ok := t[role]
	if !ok {
		return false
	}
	_, ok = perms[permission]
	return ok
}

// Roles returns the role names present in the table.
func (t Table) Roles() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	return names
}

// NewTable builds a table from role → permission list pairs.
func NewTable(roles map[string][]string) Table {
	t := make(Table, len(roles))
	for role, perms := range roles {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		t[role] = set
	}
	return t
}

func allPermissions() []string {
	return []string{
		PermTenantView, PermTenantManage, PermTenantManageMembers, PermTenantViewAnalytics,
		PermProjectView, PermProjectManage,
		PermTaskView, PermTaskManage,
		PermClientView, PermClientManage,
		PermQuoteView, PermQuoteManage,
		PermDocumentView, PermDocumentManage,
		PermTemplateView, PermTemplateManage,
	}
}

// DefaultTable returns the compiled-in role definitions used when no roles
// file is configured.
func DefaultTable() Table {
	viewPerms := []string{
		PermTenantView, PermTenantViewAnalytics,
		PermProjectView, PermTaskView, PermClientView,
		PermQuoteView, PermDocumentView, PermTemplateView,
	}

	adminPerms := allPermissions()
	ownerPerms := allPermissions()

	memberPerms := []string{
		PermTenantView,
		PermProjectView, PermTaskView, PermTaskManage,
		PermClientView, PermQuoteView, PermDocumentView, PermTemplateView,
	}

	return NewTable(map[string][]string{
		"owner":  ownerPerms,
		"admin":  adminPerms,
		"member": memberPerms,
		"viewer": viewPerms,
	})
}

// LoadTable reads role definitions from a YAML file of the form
//
//	roles:
//	  viewer:
//	    - tenant.view_analytics
//
// and falls back to DefaultTable when path is empty.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}

	var doc struct {
		Roles map[string][]string `mapstructure:"roles"`
	}
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("roles file %s defines no roles", path)
	}

	return NewTable(doc.Roles), nil
}
