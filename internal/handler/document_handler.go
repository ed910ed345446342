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

// ListDocuments returns the active tenant's document metadata, optionally
// filtered by project.
func ListDocuments(c echo.Context) error {
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

	var documents []model.Document
	if result := q.Order("created_at DESC").Find(&documents); result.Error != nil {
		log.Error("Failed to list documents", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("document listing failed", result.Error))
	}

	return c.JSON(http.StatusOK, documents)
}

// CreateDocument registers document metadata in the active tenant. The file
// bytes are stored elsewhere; only the reference is recorded here.
func CreateDocument(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}
	userID, _ := currentUserID(c)

	var req struct {
		ProjectID *uint  `json:"project_id,omitempty"`
		Name      string `json:"name"`
		Path      string `json:"path"`
		MimeType  string `json:"mime_type"`
		SizeBytes int64  `json:"size_bytes"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.Name == "" || req.Path == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "name and path are required")
	}

	if req.ProjectID != nil {
		var project model.Project
		if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
			First(&project, *req.ProjectID); result.Error != nil {
			return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "project not found")
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	document := model.Document{
		TenantID:   tenantID,
		ProjectID:  req.ProjectID,
		Name:       req.Name,
		Path:       req.Path,
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
		UploadedBy: userID,
	}

	if result := database.GetDB().Create(&document); result.Error != nil {
		log.Error("Failed to create document", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("document creation failed", result.Error))
	}

	log.Info("Document registered",
		zap.Uint("document_id", document.ID),
		zap.String("name", document.Name))

	return c.JSON(http.StatusCreated, document)
}

// GetDocument returns one document of the active tenant
func GetDocument(c echo.Context) error {
	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid document ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var document model.Document
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&document, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "document not found")
	}

	return c.JSON(http.StatusOK, document)
}

// DeleteDocument soft-deletes a document of the active tenant
func DeleteDocument(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid document ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().Scopes(scope.Tenant(tenantID)).Delete(&model.Document{}, id)
	if result.Error != nil {
		log.Error("Failed to delete document", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("document deletion failed", result.Error))
	}
	if result.RowsAffected == 0 {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "document not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
