package rbac

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	cases := []struct {
		role       string
		permission string
		want       bool
	}{
		{"owner", PermTenantManage, true},
		{"owner", PermTenantManageMembers, true},
		{"admin", PermProjectManage, true},
		{"admin", PermTenantManageMembers, true},
		{"member", PermTaskManage, true},
		{"member", PermProjectView, true},
		{"member", PermProjectManage, false},
		{"member", PermTenantManage, false},
		{"member", PermTenantViewAnalytics, false},
		{"viewer", PermProjectView, true},
		{"viewer", PermTenantViewAnalytics, true},
		{"viewer", PermTaskManage, false},
		{"viewer", PermTenantManage, false},
	}
	for _, c := range cases {
		if got := table.Allows(c.role, c.permission); got != c.want {
			t.Errorf("Allows(%q, %q) = %v, want %v", c.role, c.permission, got, c.want)
		}
	}
}

func TestUnknownRoleDeniedEverything(t *testing.T) {
	table := DefaultTable()
	for _, perm := range allPermissions() {
		if table.Allows("guest", perm) {
			t.Errorf("unknown role granted %q", perm)
		}
	}
	if table.Allows("", PermProjectView) {
		t.Error("empty role must grant nothing")
	}
}

func TestLoadTableFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	content := []byte(`roles:
  auditor:
    - tenant.view_analytics
    - project.view
  owner:
    - tenant.manage
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write roles file: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !table.Allows("auditor", PermTenantViewAnalytics) {
		t.Error("auditor should have tenant.view_analytics")
	}
	if table.Allows("auditor", PermProjectManage) {
		t.Error("auditor must not have project.manage")
	}
	// A file replaces the defaults entirely; roles it omits do not exist.
	if table.Allows("viewer", PermProjectView) {
		t.Error("viewer is not defined by this file")
	}
}

func TestLoadTableEmptyPathUsesDefaults(t *testing.T) {
	table, err := LoadTable("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !table.Allows("member", PermTaskManage) {
		t.Error("expected compiled-in defaults")
	}
}

func TestLoadTableRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(path, []byte("roles: {}\n"), 0o644); err != nil {
		t.Fatalf("write roles file: %v", err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Fatal("expected error for a roles file with no roles")
	}
}
