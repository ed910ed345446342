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

// ListClients returns the active tenant's clients
func ListClients(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var clients []model.Client
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		Order("name ASC").Find(&clients); result.Error != nil {
		log.Error("Failed to list clients", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("client listing failed", result.Error))
	}

	return c.JSON(http.StatusOK, clients)
}

// CreateClient creates a client in the active tenant
func CreateClient(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Company string `json:"company"`
		Notes   string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.Name == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "name is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	client := model.Client{
		TenantID: tenantID,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Company:  req.Company,
		Notes:    req.Notes,
	}

	if result := database.GetDB().Create(&client); result.Error != nil {
		log.Error("Failed to create client", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("client creation failed", result.Error))
	}

	log.Info("Client created", zap.Uint("client_id", client.ID), zap.String("name", client.Name))
	return c.JSON(http.StatusCreated, client)
}

// GetClient returns one client of the active tenant
func GetClient(c echo.Context) error {
	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid client ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var client model.Client
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&client, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "client not found")
	}

	return c.JSON(http.StatusOK, client)
}

// UpdateClient applies partial updates to a client of the active tenant
func UpdateClient(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid client ID")
	}

	var client model.Client
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&client, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "client not found")
	}

	var req struct {
		Name    *string `json:"name,omitempty"`
		Email   *string `json:"email,omitempty"`
		Phone   *string `json:"phone,omitempty"`
		Company *string `json:"company,omitempty"`
		Notes   *string `json:"notes,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if len(updates) > 0 {
		if err := database.GetDB().Model(&client).Updates(updates).Error; err != nil {
			log.Error("Failed to update client", zap.Error(err))
			return httpx.Error(c, apierr.Internal("client update failed", err))
		}
	}

	return c.JSON(http.StatusOK, client)
}

// DeleteClient soft-deletes a client of the active tenant
func DeleteClient(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid client ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().Scopes(scope.Tenant(tenantID)).Delete(&model.Client{}, id)
	if result.Error != nil {
		log.Error("Failed to delete client", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("client deletion failed", result.Error))
	}
	if result.RowsAffected == 0 {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "client not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
