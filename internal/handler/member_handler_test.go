package handler

import (
	"net/http"
	"testing"

	"zenamanage/internal/middleware"
	"zenamanage/internal/model"
	"zenamanage/internal/tenancy"
)

func newMemberEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t, 1, "sess-1")

	api := env.echo.Group("/m", fakeAuth(1, "sess-1"))
	api.Use(middleware.ResolveTenant(tenancy.NewResolver(env.db), env.store))
	api.POST("/tenant-users", InviteMember)
	api.DELETE("/tenant-users/:user_id", RemoveMember)
	return env
}

// Admin (user id 1) with their tenant, plus an invitable target user.
func seedAdminAndTarget(t *testing.T, env *testEnv) (model.Tenant, model.User) {
	t.Helper()
	tenant := seedSingleTenantUser(t, env)

	target := model.User{Email: "guest@example.com", Password: "x", Name: "Guest"}
	if err := env.db.Create(&target).Error; err != nil {
		t.Fatalf("create target user: %v", err)
	}
	return tenant, target
}

func TestRemoveThenReinviteMember(t *testing.T) {
	env := newMemberEnv(t)
	tenant, target := seedAdminAndTarget(t, env)

	rec := env.request(t, http.MethodPost, "/m/tenant-users",
		`{"email": "guest@example.com", "role": "member"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("invite status %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.request(t, http.MethodDelete, "/m/tenant-users/"+itoa(target.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.request(t, http.MethodPost, "/m/tenant-users",
		`{"email": "guest@example.com", "role": "viewer"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("re-invite status %d: %s", rec.Code, rec.Body.String())
	}

	// The default query scope excludes soft-deleted rows, so finding the
	// membership here proves it was restored.
	var m model.Membership
	if err := env.db.Where("user_id = ? AND tenant_id = ?", target.ID, tenant.ID).
		First(&m).Error; err != nil {
		t.Fatalf("membership not restored: %v", err)
	}
	if !m.Active {
		t.Fatal("restored membership is not active")
	}
	if m.Role != model.RoleViewer {
		t.Fatalf("restored membership kept old role: %s", m.Role)
	}
	if m.IsDefault {
		t.Fatal("restored membership must not come back as default")
	}

	// Exactly one row for the pair, deleted or not.
	var count int64
	if err := env.db.Unscoped().Model(&model.Membership{}).
		Where("user_id = ? AND tenant_id = ?", target.ID, tenant.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single membership row, got %d", count)
	}
}

func TestRemoveMemberClearsLegacyPointer(t *testing.T) {
	env := newMemberEnv(t)
	tenant, target := seedAdminAndTarget(t, env)

	m := model.Membership{UserID: target.ID, TenantID: tenant.ID, Role: model.RoleMember, Active: true}
	if err := env.db.Create(&m).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}
	if err := env.db.Model(&target).Update("tenant_id", tenant.ID).Error; err != nil {
		t.Fatalf("set legacy pointer: %v", err)
	}

	rec := env.request(t, http.MethodDelete, "/m/tenant-users/"+itoa(target.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status %d: %s", rec.Code, rec.Body.String())
	}

	var user model.User
	if err := env.db.First(&user, target.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.TenantID != nil {
		t.Fatalf("legacy pointer still set to %d after removal", *user.TenantID)
	}
}

func TestRemoveMemberRepointsLegacyToActiveMembership(t *testing.T) {
	env := newMemberEnv(t)
	tenant, target := seedAdminAndTarget(t, env)

	other := model.Tenant{Name: "other-studio", OwnerID: target.ID, Active: true}
	if err := env.db.Create(&other).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	memberships := []model.Membership{
		{UserID: target.ID, TenantID: tenant.ID, Role: model.RoleMember, Active: true},
		{UserID: target.ID, TenantID: other.ID, Role: model.RoleOwner, Active: true},
	}
	if err := env.db.Create(&memberships).Error; err != nil {
		t.Fatalf("create memberships: %v", err)
	}
	if err := env.db.Model(&target).Update("tenant_id", tenant.ID).Error; err != nil {
		t.Fatalf("set legacy pointer: %v", err)
	}

	rec := env.request(t, http.MethodDelete, "/m/tenant-users/"+itoa(target.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status %d: %s", rec.Code, rec.Body.String())
	}

	var user model.User
	if err := env.db.First(&user, target.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.TenantID == nil || *user.TenantID != other.ID {
		t.Fatalf("legacy pointer not repointed to remaining membership: %v", user.TenantID)
	}
}

func TestRemoveMemberIgnoresInactiveMembershipForRepoint(t *testing.T) {
	env := newMemberEnv(t)
	tenant, target := seedAdminAndTarget(t, env)

	other := model.Tenant{Name: "other-studio", OwnerID: target.ID, Active: true}
	if err := env.db.Create(&other).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	memberships := []model.Membership{
		{UserID: target.ID, TenantID: tenant.ID, Role: model.RoleMember, Active: true},
		{UserID: target.ID, TenantID: other.ID, Role: model.RoleMember, Active: true},
	}
	if err := env.db.Create(&memberships).Error; err != nil {
		t.Fatalf("create memberships: %v", err)
	}
	if err := env.db.Model(&memberships[1]).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate membership: %v", err)
	}
	if err := env.db.Model(&target).Update("tenant_id", tenant.ID).Error; err != nil {
		t.Fatalf("set legacy pointer: %v", err)
	}

	rec := env.request(t, http.MethodDelete, "/m/tenant-users/"+itoa(target.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status %d: %s", rec.Code, rec.Body.String())
	}

	// The resolver ignores inactive memberships, so the legacy pointer must
	// not be parked on one either.
	var user model.User
	if err := env.db.First(&user, target.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.TenantID != nil {
		t.Fatalf("legacy pointer repointed to an inactive membership's tenant: %d", *user.TenantID)
	}
}
