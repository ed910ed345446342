package tenancy

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
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Tenant{}, &model.Membership{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)

	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return NewStoreWithClient(rdb, time.Hour, zap.NewNop())
}

func createUser(t *testing.T, db *gorm.DB, email string, legacyTenant *uint) model.User {
	t.Helper()
	user := model.User{Email: email, Password: "x", TenantID: legacyTenant}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createTenant(t *testing.T, db *gorm.DB, name string, ownerID uint) model.Tenant {
	t.Helper()
	tenant := model.Tenant{Name: name, OwnerID: ownerID, Active: true}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

func createMembership(t *testing.T, db *gorm.DB, userID, tenantID uint, role string, isDefault bool) model.Membership {
	t.Helper()
	m := model.Membership{UserID: userID, TenantID: tenantID, Role: role, IsDefault: isDefault, Active: true}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}
	return m
}

func TestResolveDefaultMembership(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	user := createUser(t, db, "u@example.com", nil)
	a := createTenant(t, db, "tenant-a", user.ID)
	b := createTenant(t, db, "tenant-b", user.ID)
	createMembership(t, db, user.ID, a.ID, model.RoleAdmin, true)
	createMembership(t, db, user.ID, b.ID, model.RoleMember, false)

	res, err := resolver.Resolve(context.Background(), user.ID, store.Session("s1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.TenantID != a.ID {
		t.Fatalf("expected default tenant %d, got %d", a.ID, res.TenantID)
	}
	if res.Source != SourceDefault {
		t.Fatalf("unexpected source: %s", res.Source)
	}
	if res.Role != model.RoleAdmin {
		t.Fatalf("unexpected role: %s", res.Role)
	}
}

func TestResolveSessionSelectionWinsOverDefault(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	user := createUser(t, db, "u@example.com", nil)
	a := createTenant(t, db, "tenant-a", user.ID)
	b := createTenant(t, db, "tenant-b", user.ID)
	createMembership(t, db, user.ID, a.ID, model.RoleOwner, true)
	createMembership(t, db, user.ID, b.ID, model.RoleViewer, false)

	sess := store.Session("s1")
	if err := sess.SetSelectedTenant(context.Background(), b.ID); err != nil {
		t.Fatalf("set selection: %v", err)
	}

	res, err := resolver.Resolve(context.Background(), user.ID, sess)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.TenantID != b.ID {
		t.Fatalf("expected selected tenant %d, got %d", b.ID, res.TenantID)
	}
	if res.Source != SourceSession {
		t.Fatalf("unexpected source: %s", res.Source)
	}
	if res.Role != model.RoleViewer {
		t.Fatalf("unexpected role: %s", res.Role)
	}
}

func TestResolveStaleSelectionFallsThrough(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	user := createUser(t, db, "u@example.com", nil)
	a := createTenant(t, db, "tenant-a", user.ID)
	createMembership(t, db, user.ID, a.ID, model.RoleOwner, true)

	// Selection points at a tenant the user was never (or is no longer) in.
	sess := store.Session("s1")
	if err := sess.SetSelectedTenant(context.Background(), 9999); err != nil {
		t.Fatalf("set selection: %v", err)
	}

	res, err := resolver.Resolve(context.Background(), user.ID, sess)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.TenantID != a.ID || res.Source != SourceDefault {
		t.Fatalf("expected fallback to default, got %d via %s", res.TenantID, res.Source)
	}
}

func TestResolveSoleMembership(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	user := createUser(t, db, "u@example.com", nil)
	a := createTenant(t, db, "tenant-a", user.ID)
	createMembership(t, db, user.ID, a.ID, model.RoleMember, false)

	res, err := resolver.Resolve(context.Background(), user.ID, store.Session("s1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.TenantID != a.ID || res.Source != SourceSole {
		t.Fatalf("expected sole membership tenant %d, got %d via %s", a.ID, res.TenantID, res.Source)
	}
}

func TestResolveLegacyColumn(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	legacy := uint(42)
	user := createUser(t, db, "legacy@example.com", &legacy)

	res, err := resolver.Resolve(context.Background(), user.ID, store.Session("s1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.TenantID != legacy {
		t.Fatalf("expected legacy tenant %d, got %d", legacy, res.TenantID)
	}
	if res.Source != SourceLegacy {
		t.Fatalf("unexpected source: %s", res.Source)
	}
	if res.Role != "" {
		t.Fatalf("legacy path must carry no role, got %q", res.Role)
	}
}

func TestResolveMembershipBeatsLegacy(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	legacy := uint(42)
	user := createUser(t, db, "mixed@example.com", &legacy)
	a := createTenant(t, db, "tenant-a", user.ID)
	createMembership(t, db, user.ID, a.ID, model.RoleMember, false)

	res, err := resolver.Resolve(context.Background(), user.ID, store.Session("s1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.TenantID != a.ID {
		t.Fatalf("membership must take priority over legacy column, got %d", res.TenantID)
	}
}

func TestResolveNoTenant(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	user := createUser(t, db, "nobody@example.com", nil)

	_, err := resolver.Resolve(context.Background(), user.ID, store.Session("s1"))
	if !errors.Is(err, apierr.ErrNoActiveTenant) {
		t.Fatalf("expected ErrNoActiveTenant, got %v", err)
	}
}

func TestResolveInactiveMembershipIgnored(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	user := createUser(t, db, "u@example.com", nil)
	a := createTenant(t, db, "tenant-a", user.ID)
	m := createMembership(t, db, user.ID, a.ID, model.RoleMember, true)
	if err := db.Model(&m).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate membership: %v", err)
	}

	_, err := resolver.Resolve(context.Background(), user.ID, store.Session("s1"))
	if !errors.Is(err, apierr.ErrNoActiveTenant) {
		t.Fatalf("expected ErrNoActiveTenant, got %v", err)
	}
}

func TestSelectTenantNotAMember(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	user := createUser(t, db, "u@example.com", nil)
	a := createTenant(t, db, "tenant-a", user.ID)
	b := createTenant(t, db, "tenant-b", user.ID)
	createMembership(t, db, user.ID, a.ID, model.RoleOwner, true)

	sess := store.Session("s1")
	if err := sess.SetSelectedTenant(context.Background(), a.ID); err != nil {
		t.Fatalf("seed selection: %v", err)
	}

	_, err := resolver.SelectTenant(context.Background(), user.ID, sess, b.ID)
	if !errors.Is(err, apierr.ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}

	// The prior selection must survive a rejected switch.
	selected, ok, err := sess.SelectedTenant(context.Background())
	if err != nil || !ok {
		t.Fatalf("read selection: ok=%v err=%v", ok, err)
	}
	if selected != a.ID {
		t.Fatalf("rejected switch changed selection: %d", selected)
	}
}

func TestSelectTenantThenResolve(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	resolver := NewResolver(db)

	user := createUser(t, db, "u@example.com", nil)
	a := createTenant(t, db, "tenant-a", user.ID)
	b := createTenant(t, db, "tenant-b", user.ID)
	createMembership(t, db, user.ID, a.ID, model.RoleOwner, true)
	createMembership(t, db, user.ID, b.ID, model.RoleMember, false)

	sess := store.Session("s1")
	res, err := resolver.SelectTenant(context.Background(), user.ID, sess, b.ID)
	if err != nil {
		t.Fatalf("select tenant: %v", err)
	}
	if res.TenantID != b.ID || res.Role != model.RoleMember {
		t.Fatalf("unexpected selection result: %+v", res)
	}

	after, err := resolver.Resolve(context.Background(), user.ID, sess)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if after.TenantID != b.ID || after.Source != SourceSession {
		t.Fatalf("expected session resolution of %d, got %d via %s", b.ID, after.TenantID, after.Source)
	}

	// A different session of the same user is unaffected.
	other, err := resolver.Resolve(context.Background(), user.ID, store.Session("s2"))
	if err != nil {
		t.Fatalf("resolve other session: %v", err)
	}
	if other.TenantID != a.ID {
		t.Fatalf("selection leaked across sessions: %d", other.TenantID)
	}
}
