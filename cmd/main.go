package main

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"zenamanage/internal/handler"
	"zenamanage/internal/middleware"
	"zenamanage/internal/rbac"
	"zenamanage/internal/tenancy"
	"zenamanage/pkg/config"
	"zenamanage/pkg/database"
	"zenamanage/pkg/jwtutil"
	"zenamanage/pkg/logger"
	"zenamanage/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting zenamanage...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Session store backing per-login tenant selection
	sessions, err := tenancy.NewStore(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.SessionTTL(), log)
	if err != nil {
		log.Fatal("Failed to connect session store", zap.Error(err))
	}
	defer sessions.Close()

	// Role table and permission gate
	table, err := rbac.LoadTable(cfg.RBAC.RolesFile)
	if err != nil {
		log.Fatal("Failed to load role table", zap.Error(err))
	}
	log.Info("Role table loaded", zap.Strings("roles", table.Roles()))

	resolver := tenancy.NewResolver(database.GetDB())
	gate := rbac.NewGate(resolver, table)
	handler.Initialize(resolver, sessions)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/login", handler.Login)
	auth.POST("/register", handler.Register)
	auth.POST("/logout", handler.Logout, middleware.AuthMiddleware)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// User management
	users := api.Group("/users")
	users.GET("/profile", handler.GetProfile)
	users.PATCH("/profile", handler.UpdateProfile)
	users.POST("/change-password", handler.ChangePassword)

	// Tenant selection - membership-checked, no tenant context required yet
	tenantAuth := api.Group("/tenant-auth")
	tenantAuth.POST("/select", handler.SelectTenant)
	tenantAuth.POST("/default", handler.SetDefaultTenant)

	// Tenant management - membership checks happen in the handlers
	tenants := api.Group("/tenants")
	tenants.POST("", handler.CreateTenant)
	tenants.GET("", handler.ListUserTenants)
	tenants.GET("/:id", handler.GetTenant)

	// Everything below operates on the resolved active tenant
	scoped := api.Group("")
	scoped.Use(middleware.ResolveTenant(resolver, sessions))

	members := scoped.Group("/tenant-users")
	members.GET("", handler.ListMembers, middleware.RequirePermission(gate, rbac.PermTenantView))
	members.POST("", handler.InviteMember, middleware.RequirePermission(gate, rbac.PermTenantManageMembers))
	members.PATCH("/:user_id", handler.UpdateMemberRole, middleware.RequirePermission(gate, rbac.PermTenantManageMembers))
	members.DELETE("/:user_id", handler.RemoveMember, middleware.RequirePermission(gate, rbac.PermTenantManageMembers))

	projects := scoped.Group("/projects")
	projects.GET("", handler.ListProjects, middleware.RequirePermission(gate, rbac.PermProjectView))
	projects.GET("/:id", handler.GetProject, middleware.RequirePermission(gate, rbac.PermProjectView))
	projects.POST("", handler.CreateProject, middleware.RequirePermission(gate, rbac.PermProjectManage))
	projects.PATCH("/:id", handler.UpdateProject, middleware.RequirePermission(gate, rbac.PermProjectManage))
	projects.DELETE("/:id", handler.DeleteProject, middleware.RequirePermission(gate, rbac.PermProjectManage))

	tasks := scoped.Group("/tasks")
	tasks.GET("", handler.ListTasks, middleware.RequirePermission(gate, rbac.PermTaskView))
	tasks.GET("/:id", handler.GetTask, middleware.RequirePermission(gate, rbac.PermTaskView))
	tasks.POST("", handler.CreateTask, middleware.RequirePermission(gate, rbac.PermTaskManage))
	tasks.PATCH("/:id", handler.UpdateTask, middleware.RequirePermission(gate, rbac.PermTaskManage))
	tasks.DELETE("/:id", handler.DeleteTask, middleware.RequirePermission(gate, rbac.PermTaskManage))

	clients := scoped.Group("/clients")
	clients.GET("", handler.ListClients, middleware.RequirePermission(gate, rbac.PermClientView))
	clients.GET("/:id", handler.GetClient, middleware.RequirePermission(gate, rbac.PermClientView))
	clients.POST("", handler.CreateClient, middleware.RequirePermission(gate, rbac.PermClientManage))
	clients.PATCH("/:id", handler.UpdateClient, middleware.RequirePermission(gate, rbac.PermClientManage))
	clients.DELETE("/:id", handler.DeleteClient, middleware.RequirePermission(gate, rbac.PermClientManage))

	quotes := scoped.Group("/quotes")
	quotes.GET("", handler.ListQuotes, middleware.RequirePermission(gate, rbac.PermQuoteView))
	quotes.GET("/:id", handler.GetQuote, middleware.RequirePermission(gate, rbac.PermQuoteView))
	quotes.POST("", handler.CreateQuote, middleware.RequirePermission(gate, rbac.PermQuoteManage))
	quotes.PATCH("/:id", handler.UpdateQuote, middleware.RequirePermission(gate, rbac.PermQuoteManage))
	quotes.DELETE("/:id", handler.DeleteQuote, middleware.RequirePermission(gate, rbac.PermQuoteManage))

	documents := scoped.Group("/documents")
	documents.GET("", handler.ListDocuments, middleware.RequirePermission(gate, rbac.PermDocumentView))
	documents.GET("/:id", handler.GetDocument, middleware.RequirePermission(gate, rbac.PermDocumentView))
	documents.POST("", handler.CreateDocument, middleware.RequirePermission(gate, rbac.PermDocumentManage))
	documents.DELETE("/:id", handler.DeleteDocument, middleware.RequirePermission(gate, rbac.PermDocumentManage))

	templates := scoped.Group("/templates")
	templates.GET("", handler.ListTemplates, middleware.RequirePermission(gate, rbac.PermTemplateView))
	templates.GET("/:id", handler.GetTemplate, middleware.RequirePermission(gate, rbac.PermTemplateView))
	templates.POST("", handler.CreateTemplate, middleware.RequirePermission(gate, rbac.PermTemplateManage))
	templates.PUT("/:id/items", handler.ReplaceTemplateItems, middleware.RequirePermission(gate, rbac.PermTemplateManage))
	templates.DELETE("/:id", handler.DeleteTemplate, middleware.RequirePermission(gate, rbac.PermTemplateManage))
	templates.POST("/:id/apply", handler.ApplyTemplate, middleware.RequirePermission(gate, rbac.PermTemplateManage))

	dashboard := scoped.Group("/dashboard")
	dashboard.GET("/stats", handler.DashboardStats, middleware.RequirePermission(gate, rbac.PermTenantViewAnalytics))

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
