package handler

import (
	"net/http"
	"strconv"
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

// ListProjects returns the active tenant's projects, optionally filtered by
// status.
func ListProjects(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	q := database.GetDB().Scopes(scope.Tenant(tenantID)).Preload("Client")
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var projects []model.Project
	if result := q.Order("created_at DESC").Find(&projects); result.Error != nil {
		log.Error("Failed to list projects", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("project listing failed", result.Error))
	}

	return c.JSON(http.StatusOK, projects)
}

// CreateProject creates a project in the active tenant
func CreateProject(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	var req struct {
		Name        string     `json:"name"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		ClientID    *uint      `json:"client_id,omitempty"`
		StartDate   *time.Time `json:"start_date,omitempty"`
		DueDate     *time.Time `json:"due_date,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.Name == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "name is required")
	}
	if req.Status == "" {
		req.Status = model.ProjectStatusPlanned
	}

	// A referenced client must belong to the same tenant.
	if req.ClientID != nil {
		var client model.Client
		if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
			First(&client, *req.ClientID); result.Error != nil {
			return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "client not found")
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	project := model.Project{
		TenantID:    tenantID,
		ClientID:    req.ClientID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
	}

	if result := database.GetDB().Create(&project); result.Error != nil {
		log.Error("Failed to create project", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("project creation failed", result.Error))
	}

	log.Info("Project created",
		zap.Uint("project_id", project.ID),
		zap.String("name", project.Name))

	return c.JSON(http.StatusCreated, project)
}

// GetProject returns a single project of the active tenant
func GetProject(c echo.Context) error {
	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid project ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var project model.Project
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		Preload("Client").Preload("Tasks").
		First(&project, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "project not found")
	}

	return c.JSON(http.StatusOK, project)
}

// UpdateProject applies partial updates to a project of the active tenant
func UpdateProject(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid project ID")
	}

	var project model.Project
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&project, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "project not found")
	}

	var req struct {
		Name        *string    `json:"name,omitempty"`
		Description *string    `json:"description,omitempty"`
		Status      *string    `json:"status,omitempty"`
		ClientID    *uint      `json:"client_id,omitempty"`
		StartDate   *time.Time `json:"start_date,omitempty"`
		DueDate     *time.Time `json:"due_date,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.ClientID != nil {
		var client model.Client
		if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
			First(&client, *req.ClientID); result.Error != nil {
			return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "client not found")
		}
		updates["client_id"] = *req.ClientID
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if len(updates) > 0 {
		if err := database.GetDB().Model(&project).Updates(updates).Error; err != nil {
			log.Error("Failed to update project", zap.Error(err))
			return httpx.Error(c, apierr.Internal("project update failed", err))
		}
	}

	return c.JSON(http.StatusOK, project)
}

// DeleteProject soft-deletes a project of the active tenant
func DeleteProject(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid project ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().Scopes(scope.Tenant(tenantID)).Delete(&model.Project{}, id)
	if result.Error != nil {
		log.Error("Failed to delete project", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("project deletion failed", result.Error))
	}
	if result.RowsAffected == 0 {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "project not found")
	}

	log.Info("Project deleted", zap.Uint64("project_id", id))
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
