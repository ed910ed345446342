package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"zenamanage/internal/apierr"
	"zenamanage/internal/model"
	"zenamanage/internal/tenancy"
)

type gateFixture struct {
	db    *gorm.DB
	store *tenancy.Store
	gate  *Gate
}

func newGateFixture(t *testing.T, table Table) *gateFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Tenant{}, &model.Membership{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	store := tenancy.NewStoreWithClient(rdb, time.Hour, zap.NewNop())
	return &gateFixture{
		db:    db,
		store: store,
		gate:  NewGate(tenancy.NewResolver(db), table),
	}
}

func (f *gateFixture) seedUser(t *testing.T, role string, legacyTenant *uint) (model.User, model.Tenant) {
	t.Helper()
	user := model.User{Email: role + "@example.com", Password: "x", TenantID: legacyTenant}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	tenant := model.Tenant{Name: "tenant-" + role, OwnerID: user.ID, Active: true}
	if err := f.db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if role != "" {
		m := model.Membership{UserID: user.ID, TenantID: tenant.ID, Role: role, IsDefault: true, Active: true}
		if err := f.db.Create(&m).Error; err != nil {
			t.Fatalf("create membership: %v", err)
		}
	}
	return user, tenant
}

func TestAuthorizeAllowed(t *testing.T) {
	f := newGateFixture(t, DefaultTable())
	user, tenant := f.seedUser(t, model.RoleViewer, nil)

	res, err := f.gate.Authorize(context.Background(), user.ID, f.store.Session("s1"), PermTenantViewAnalytics)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if res.TenantID != tenant.ID {
		t.Fatalf("unexpected tenant: %d", res.TenantID)
	}
}

func TestAuthorizeDenied(t *testing.T) {
	f := newGateFixture(t, DefaultTable())
	user, _ := f.seedUser(t, model.RoleViewer, nil)

	_, err := f.gate.Authorize(context.Background(), user.ID, f.store.Session("s1"), PermProjectManage)
	if !errors.Is(err, apierr.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apierr.Error, got %T", err)
	}
	if apiErr.Code != apierr.CodePermissionDenied {
		t.Fatalf("unexpected code: %s", apiErr.Code)
	}
	if apiErr.Status != 403 {
		t.Fatalf("unexpected status: %d", apiErr.Status)
	}
}

func TestAuthorizeUnknownRoleDefaultDeny(t *testing.T) {
	f := newGateFixture(t, DefaultTable())
	// A role present in the DB but absent from the table grants nothing,
	// even permissions every defined role has.
	user, _ := f.seedUser(t, "guest", nil)

	_, err := f.gate.Authorize(context.Background(), user.ID, f.store.Session("s1"), PermProjectView)
	if !errors.Is(err, apierr.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestAuthorizeLegacyPathDenied(t *testing.T) {
	f := newGateFixture(t, DefaultTable())
	legacy := uint(42)
	user := model.User{Email: "legacy@example.com", Password: "x", TenantID: &legacy}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	// Legacy resolution has no membership and therefore no role.
	_, err := f.gate.Authorize(context.Background(), user.ID, f.store.Session("s1"), PermProjectView)
	if !errors.Is(err, apierr.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestAuthorizeNoTenant(t *testing.T) {
	f := newGateFixture(t, DefaultTable())
	user := model.User{Email: "nobody@example.com", Password: "x"}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err := f.gate.Authorize(context.Background(), user.ID, f.store.Session("s1"), PermProjectView)
	if !errors.Is(err, apierr.ErrNoActiveTenant) {
		t.Fatalf("expected ErrNoActiveTenant, got %v", err)
	}
}

func TestAuthorizeResolved(t *testing.T) {
	f := newGateFixture(t, DefaultTable())

	res := &tenancy.Resolution{TenantID: 1, Role: model.RoleMember, Source: tenancy.SourceDefault}
	if err := f.gate.AuthorizeResolved(res, PermTaskManage); err != nil {
		t.Fatalf("authorize resolved: %v", err)
	}
	if err := f.gate.AuthorizeResolved(res, PermTenantManage); !errors.Is(err, apierr.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := f.gate.AuthorizeResolved(nil, PermTaskView); !errors.Is(err, apierr.ErrNoActiveTenant) {
		t.Fatalf("expected ErrNoActiveTenant, got %v", err)
	}
}
