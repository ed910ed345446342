package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"zenamanage/internal/middleware"
	"zenamanage/internal/model"
	"zenamanage/internal/rbac"
	"zenamanage/internal/tenancy"
	"zenamanage/pkg/database"
)

type testEnv struct {
	db    *gorm.DB
	store *tenancy.Store
	echo  *echo.Echo
}

// fakeAuth stands in for AuthMiddleware: it injects the identity a valid
// token would have produced.
func fakeAuth(userID uint, sessionID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", userID)
			c.Set("email", "test@example.com")
			c.Set("session_id", sessionID)
			return next(c)
		}
	}
}

func newTestEnv(t *testing.T, userID uint, sessionID string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

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
	res := tenancy.NewResolver(db)
	gate := rbac.NewGate(res, rbac.DefaultTable())
	Initialize(res, store)

	e := echo.New()
	api := e.Group("/api", fakeAuth(userID, sessionID))
	api.POST("/tenant-auth/select", SelectTenant)
	api.POST("/tenant-auth/default", SetDefaultTenant)

	scoped := api.Group("", middleware.ResolveTenant(res, store))
	scoped.GET("/dashboard/stats", DashboardStats,
		middleware.RequirePermission(gate, rbac.PermTenantViewAnalytics))
	scoped.GET("/projects", ListProjects,
		middleware.RequirePermission(gate, rbac.PermProjectView))
	scoped.POST("/projects", CreateProject,
		middleware.RequirePermission(gate, rbac.PermProjectManage))

	return &testEnv{db: db, store: store, echo: e}
}

func (env *testEnv) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func seedTwoTenantUser(t *testing.T, db *gorm.DB) (model.User, model.Tenant, model.Tenant) {
	t.Helper()

	user := model.User{Email: "pm@example.com", Password: "x", Name: "PM"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	a := model.Tenant{Name: "studio-a", OwnerID: user.ID, Active: true}
	b := model.Tenant{Name: "studio-b", OwnerID: user.ID, Active: true}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create tenant a: %v", err)
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("create tenant b: %v", err)
	}

	// Viewer in B so the analytics-gated dashboard stays reachable after a
	// switch.
	memberships := []model.Membership{
		{UserID: user.ID, TenantID: a.ID, Role: model.RoleOwner, IsDefault: true, Active: true},
		{UserID: user.ID, TenantID: b.ID, Role: model.RoleViewer, IsDefault: false, Active: true},
	}
	if err := db.Create(&memberships).Error; err != nil {
		t.Fatalf("create memberships: %v", err)
	}
	return user, a, b
}

func seedProjects(t *testing.T, db *gorm.DB, tenantID uint, names ...string) {
	t.Helper()
	for _, name := range names {
		p := model.Project{TenantID: tenantID, Name: name, Status: model.ProjectStatusActive}
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("create project: %v", err)
		}
	}
}

func TestDashboardStatsScopedToActiveTenant(t *testing.T) {
	env := newTestEnv(t, 1, "sess-1")
	_, a, b := seedTwoTenantUser(t, env.db)

	seedProjects(t, env.db, a.ID, "alpha", "beta")
	seedProjects(t, env.db, b.ID, "gamma")

	rec := env.request(t, http.MethodGet, "/api/dashboard/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if got := body["tenant_id"].(float64); uint(got) != a.ID {
		t.Fatalf("expected default tenant %d, got %v", a.ID, got)
	}
	projects := body["projects"].(map[string]interface{})
	if total := projects["total"].(float64); total != 2 {
		t.Fatalf("tenant B rows leaked into stats: total=%v", total)
	}
}

func TestSelectTenantSwitchesScope(t *testing.T) {
	env := newTestEnv(t, 1, "sess-1")
	_, a, b := seedTwoTenantUser(t, env.db)
	seedProjects(t, env.db, a.ID, "alpha", "beta")
	seedProjects(t, env.db, b.ID, "gamma")

	rec := env.request(t, http.MethodPost, "/api/tenant-auth/select",
		`{"tenant_id": `+itoa(b.ID)+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select status %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.request(t, http.MethodGet, "/api/dashboard/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if got := body["tenant_id"].(float64); uint(got) != b.ID {
		t.Fatalf("expected selected tenant %d, got %v", b.ID, got)
	}
	projects := body["projects"].(map[string]interface{})
	if total := projects["total"].(float64); total != 1 {
		t.Fatalf("expected only tenant B's project, got total=%v", total)
	}
}

func TestSelectTenantRejectedForNonMember(t *testing.T) {
	env := newTestEnv(t, 1, "sess-1")
	_, a, _ := seedTwoTenantUser(t, env.db)

	outsider := model.Tenant{Name: "outsider", OwnerID: 99, Active: true}
	if err := env.db.Create(&outsider).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	rec := env.request(t, http.MethodPost, "/api/tenant-auth/select",
		`{"tenant_id": `+itoa(outsider.ID)+`}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["ok"] != false {
		t.Fatalf("expected ok=false, got %v", body["ok"])
	}
	if body["code"] != "TENANT_NOT_MEMBER" {
		t.Fatalf("unexpected code: %v", body["code"])
	}

	// The default tenant still resolves afterwards.
	rec = env.request(t, http.MethodGet, "/api/dashboard/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["tenant_id"].(float64); uint(got) != a.ID {
		t.Fatalf("rejected selection changed the active tenant: %v", got)
	}
}

func TestPermissionDeniedEnvelope(t *testing.T) {
	env := newTestEnv(t, 1, "sess-1")

	user := model.User{Email: "viewer@example.com", Password: "x"}
	if err := env.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	tenant := model.Tenant{Name: "studio", OwnerID: user.ID, Active: true}
	if err := env.db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	m := model.Membership{UserID: user.ID, TenantID: tenant.ID, Role: model.RoleViewer, IsDefault: true, Active: true}
	if err := env.db.Create(&m).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}

	// Viewing is allowed.
	rec := env.request(t, http.MethodGet, "/api/projects", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", rec.Code, rec.Body.String())
	}

	// Managing is not.
	rec = env.request(t, http.MethodPost, "/api/projects", `{"name": "nope"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["ok"] != false {
		t.Fatalf("expected ok=false, got %v", body["ok"])
	}
	if body["code"] != "TENANT_PERMISSION_DENIED" {
		t.Fatalf("unexpected code: %v", body["code"])
	}
}

func TestNoActiveTenantEnvelope(t *testing.T) {
	env := newTestEnv(t, 1, "sess-1")

	user := model.User{Email: "floating@example.com", Password: "x"}
	if err := env.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	rec := env.request(t, http.MethodGet, "/api/dashboard/stats", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["code"] != "TENANT_NOT_RESOLVED" {
		t.Fatalf("unexpected code: %v", body["code"])
	}
}

func TestSetDefaultTenantKeepsSingleDefault(t *testing.T) {
	env := newTestEnv(t, 1, "sess-1")
	user, _, b := seedTwoTenantUser(t, env.db)

	rec := env.request(t, http.MethodPost, "/api/tenant-auth/default",
		`{"tenant_id": `+itoa(b.ID)+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var defaults []model.Membership
	if err := env.db.Where("user_id = ? AND is_default = ?", user.ID, true).
		Find(&defaults).Error; err != nil {
		t.Fatalf("query defaults: %v", err)
	}
	if len(defaults) != 1 {
		t.Fatalf("expected exactly one default membership, got %d", len(defaults))
	}
	if defaults[0].TenantID != b.ID {
		t.Fatalf("default did not move to tenant %d", b.ID)
	}

	// A fresh session with no selection now resolves to the new default.
	ctx := context.Background()
	res, err := tenancy.NewResolver(env.db).Resolve(ctx, user.ID, env.store.Session("fresh"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.TenantID != b.ID || res.Source != tenancy.SourceDefault {
		t.Fatalf("expected default resolution of %d, got %d via %s", b.ID, res.TenantID, res.Source)
	}
}
