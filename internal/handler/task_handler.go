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

// ListTasks returns the active tenant's tasks, optionally filtered by
// project, status or assignee.
func ListTasks(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	q := database.GetDB().Scopes(scope.Tenant(tenantID))
	if pid := c.QueryParam("project_id"); pid != "" {
		q = q.Where("project_id = ?", pid)
	}
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if assignee := c.QueryParam("assignee_id"); assignee != "" {
		q = q.Where("assignee_id = ?", assignee)
	}

	var tasks []model.Task
	if result := q.Order("created_at DESC").Find(&tasks); result.Error != nil {
		log.Error("Failed to list tasks", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("task listing failed", result.Error))
	}

	return c.JSON(http.StatusOK, tasks)
}

// CreateTask creates a task in a project of the active tenant
func CreateTask(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	var req struct {
		ProjectID   uint       `json:"project_id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		Priority    string     `json:"priority"`
		AssigneeID  *uint      `json:"assignee_id,omitempty"`
		DueDate     *time.Time `json:"due_date,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.ProjectID == 0 || req.Title == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "project_id and title are required")
	}
	if req.Status == "" {
		req.Status = model.TaskStatusOpen
	}
	if req.Priority == "" {
		req.Priority = model.TaskPriorityNormal
	}

	// The project must belong to the active tenant.
	var project model.Project
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&project, req.ProjectID); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "project not found")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	task := model.Task{
		TenantID:    tenantID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	}

	if result := database.GetDB().Create(&task); result.Error != nil {
		log.Error("Failed to create task", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("task creation failed", result.Error))
	}

	log.Info("Task created",
		zap.Uint("task_id", task.ID),
		zap.Uint("project_id", task.ProjectID))

	return c.JSON(http.StatusCreated, task)
}

// GetTask returns a single task of the active tenant
func GetTask(c echo.Context) error {
	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid task ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var task model.Task
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&task, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "task not found")
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTask applies partial updates to a task of the active tenant
func UpdateTask(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid task ID")
	}

	var task model.Task
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&task, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "task not found")
	}

	var req struct {
		Title       *string    `json:"title,omitempty"`
		Description *string    `json:"description,omitempty"`
		Status      *string    `json:"status,omitempty"`
		Priority    *string    `json:"priority,omitempty"`
		AssigneeID  *uint      `json:"assignee_id,omitempty"`
		DueDate     *time.Time `json:"due_date,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.AssigneeID != nil {
		updates["assignee_id"] = *req.AssigneeID
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if len(updates) > 0 {
		if err := database.GetDB().Model(&task).Updates(updates).Error; err != nil {
			log.Error("Failed to update task", zap.Error(err))
			return httpx.Error(c, apierr.Internal("task update failed", err))
		}
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask soft-deletes a task of the active tenant
func DeleteTask(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid task ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().Scopes(scope.Tenant(tenantID)).Delete(&model.Task{}, id)
	if result.Error != nil {
		log.Error("Failed to delete task", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("task deletion failed", result.Error))
	}
	if result.RowsAffected == 0 {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "task not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
