package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"zenamanage/internal/apierr"
	"zenamanage/internal/httpx"
	"zenamanage/internal/model"
	"zenamanage/internal/scope"
	"zenamanage/pkg/database"
	"zenamanage/pkg/logger"
	"zenamanage/prometheus"
)

// DashboardStats returns aggregate counts for the active tenant. Every count
// is scoped to the resolved tenant; other tenants' rows never leak in.
func DashboardStats(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	db := database.GetDB()

	var projects, activeProjects, tasks, openTasks, clients, quotes, pendingQuotes int64

	counts := []struct {
		dest  *int64
		model interface{}
		conds []interface{}
	}{
		{&projects, &model.Project{}, nil},
		{&activeProjects, &model.Project{}, []interface{}{"status = ?", model.ProjectStatusActive}},
		{&tasks, &model.Task{}, nil},
		{&openTasks, &model.Task{}, []interface{}{"status IN ?", []string{model.TaskStatusOpen, model.TaskStatusInProgress}}},
		{&clients, &model.Client{}, nil},
		{&quotes, &model.Quote{}, nil},
		{&pendingQuotes, &model.Quote{}, []interface{}{"status IN ?", []string{model.QuoteStatusDraft, model.QuoteStatusSent}}},
	}

	for _, cnt := range counts {
		q := db.Model(cnt.model).Scopes(scope.Tenant(tenantID))
		if cnt.conds != nil {
			q = q.Where(cnt.conds[0], cnt.conds[1:]...)
		}
		if err := q.Count(cnt.dest).Error; err != nil {
			log.Error("Failed to compute dashboard stats", zap.Error(err))
			return httpx.Error(c, apierr.Internal("dashboard stats failed", err))
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"tenant_id": tenantID,
		"projects": echo.Map{
			"total":  projects,
			"active": activeProjects,
		},
		"tasks": echo.Map{
			"total": tasks,
			"open":  openTasks,
		},
		"clients": echo.Map{
			"total": clients,
		},
		"quotes": echo.Map{
			"total":   quotes,
			"pending": pendingQuotes,
		},
	})
}
