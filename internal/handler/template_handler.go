package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"zenamanage/internal/apierr"
	"zenamanage/internal/httpx"
	"zenamanage/internal/model"
	"zenamanage/internal/scope"
	"zenamanage/pkg/database"
	"zenamanage/pkg/logger"
	"zenamanage/prometheus"
)

type templateItemRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	DefaultPriority string `json:"default_priority"`
	OffsetDays      *int   `json:"offset_days,omitempty"`
}

// ListTemplates returns the active tenant's work templates
func ListTemplates(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var templates []model.WorkTemplate
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		Order("name ASC").Find(&templates); result.Error != nil {
		log.Error("Failed to list templates", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("template listing failed", result.Error))
	}

	return c.JSON(http.StatusOK, templates)
}

// CreateTemplate creates a work template with its initial item list at
// version 1.
func CreateTemplate(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	var req struct {
		Name        string                `json:"name"`
		Description string                `json:"description"`
		Items       []templateItemRequest `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.Name == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "name is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		return httpx.Error(c, apierr.Internal("database error", tx.Error))
	}

	template := model.WorkTemplate{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     1,
		Active:      true,
	}

	if result := tx.Create(&template); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create template", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("template creation failed", result.Error))
	}

	for i, item := range req.Items {
		if item.Title == "" {
			tx.Rollback()
			return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "item title is required")
		}
		priority := item.DefaultPriority
		if priority == "" {
			priority = model.TaskPriorityNormal
		}
		row := model.WorkTemplateItem{
			TemplateID:      template.ID,
			Position:        i + 1,
			Title:           item.Title,
			Description:     item.Description,
			DefaultPriority: priority,
			OffsetDays:      item.OffsetDays,
		}
		if result := tx.Create(&row); result.Error != nil {
			tx.Rollback()
			log.Error("Failed to create template item", zap.Error(result.Error))
			return httpx.Error(c, apierr.Internal("template item creation failed", result.Error))
		}
	}

	if err := tx.Commit().Error; err != nil {
		return httpx.Error(c, apierr.Internal("transaction commit failed", err))
	}

	log.Info("Template created",
		zap.Uint("template_id", template.ID),
		zap.String("name", template.Name),
		zap.Int("items", len(req.Items)))

	return c.JSON(http.StatusCreated, template)
}

// GetTemplate returns one template of the active tenant with its items
func GetTemplate(c echo.Context) error {
	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid template ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var template model.WorkTemplate
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&template, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "template not found")
	}

	return c.JSON(http.StatusOK, template)
}

// ReplaceTemplateItems swaps a template's item list for a new one and bumps
// the version, so tasks already created keep pointing at the revision that
// produced them.
func ReplaceTemplateItems(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid template ID")
	}

	var req struct {
		Items []templateItemRequest `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if len(req.Items) == 0 {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "items are required")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		return httpx.Error(c, apierr.Internal("database error", tx.Error))
	}

	var template model.WorkTemplate
	if result := tx.Scopes(scope.Tenant(tenantID)).First(&template, id); result.Error != nil {
		tx.Rollback()
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "template not found")
	}

	if err := tx.Where("template_id = ?", template.ID).
		Delete(&model.WorkTemplateItem{}).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to clear template items", zap.Error(err))
		return httpx.Error(c, apierr.Internal("template item update failed", err))
	}

	for i, item := range req.Items {
		if item.Title == "" {
			tx.Rollback()
			return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "item title is required")
		}
		priority := item.DefaultPriority
		if priority == "" {
			priority = model.TaskPriorityNormal
		}
		row := model.WorkTemplateItem{
			TemplateID:      template.ID,
			Position:        i + 1,
			Title:           item.Title,
			Description:     item.Description,
			DefaultPriority: priority,
			OffsetDays:      item.OffsetDays,
		}
		if result := tx.Create(&row); result.Error != nil {
			tx.Rollback()
			return httpx.Error(c, apierr.Internal("template item creation failed", result.Error))
		}
	}

	template.Version++
	if err := tx.Save(&template).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to bump template version", zap.Error(err))
		return httpx.Error(c, apierr.Internal("template update failed", err))
	}

	if err := tx.Commit().Error; err != nil {
		return httpx.Error(c, apierr.Internal("transaction commit failed", err))
	}

	log.Info("Template items replaced",
		zap.Uint("template_id", template.ID),
		zap.Int("version", template.Version))

	return c.JSON(http.StatusOK, template)
}

// DeleteTemplate soft-deletes a template of the active tenant
func DeleteTemplate(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid template ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().Scopes(scope.Tenant(tenantID)).Delete(&model.WorkTemplate{}, id)
	if result.Error != nil {
		log.Error("Failed to delete template", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("template deletion failed", result.Error))
	}
	if result.RowsAffected == 0 {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "template not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ApplyTemplate instantiates a template's items as tasks of a project in the
// active tenant. Created tasks record the template id and version; due dates
// derive from the project start plus each item's offset when both are set.
func ApplyTemplate(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid template ID")
	}

	var req struct {
		ProjectID uint `json:"project_id"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.ProjectID == 0 {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "project_id is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		return httpx.Error(c, apierr.Internal("database error", tx.Error))
	}

	var template model.WorkTemplate
	if result := tx.Scopes(scope.Tenant(tenantID)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&template, id); result.Error != nil {
		tx.Rollback()
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "template not found")
	}

	var project model.Project
	if result := tx.Scopes(scope.Tenant(tenantID)).
		First(&project, req.ProjectID); result.Error != nil {
		tx.Rollback()
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "project not found")
	}

	version := template.Version
	templateID := template.ID
	created := make([]model.Task, 0, len(template.Items))
	for _, item := range template.Items {
		var due *time.Time
		if item.OffsetDays != nil && project.StartDate != nil {
			d := project.StartDate.AddDate(0, 0, *item.OffsetDays)
			due = &d
		}
		task := model.Task{
			TenantID:        tenantID,
			ProjectID:       project.ID,
			Title:           item.Title,
			Description:     item.Description,
			Status:          model.TaskStatusOpen,
			Priority:        item.DefaultPriority,
			DueDate:         due,
			TemplateID:      &templateID,
			TemplateVersion: &version,
		}
		if result := tx.Create(&task); result.Error != nil {
			tx.Rollback()
			log.Error("Failed to create task from template", zap.Error(result.Error))
			return httpx.Error(c, apierr.Internal("template apply failed", result.Error))
		}
		created = append(created, task)
	}

	if err := tx.Commit().Error; err != nil {
		return httpx.Error(c, apierr.Internal("transaction commit failed", err))
	}

	log.Info("Template applied",
		zap.Uint("template_id", template.ID),
		zap.Int("version", version),
		zap.Uint("project_id", project.ID),
		zap.Int("tasks_created", len(created)))

	return c.JSON(http.StatusCreated, echo.Map{
		"ok":               true,
		"template_id":      template.ID,
		"template_version": version,
		"project_id":       project.ID,
		"tasks":            created,
	})
}
