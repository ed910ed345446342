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
	"zenamanage/pkg/database"
	"zenamanage/pkg/logger"
	"zenamanage/prometheus"
)

// CreateTenant handles tenant creation. The creator becomes its owner; the
// new tenant becomes their default only if they have no default yet.
func CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("create")

	userID, ok := currentUserID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrUnauthenticated)
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Settings    string `json:"settings,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant creation request", zap.Error(err))
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}

	if req.Name == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "name is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return httpx.Error(c, apierr.Internal("database error", tx.Error))
	}

	tenant := model.Tenant{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
		Settings:    req.Settings,
		Active:      true,
	}

	if result := tx.Create(&tenant); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create tenant", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("tenant creation failed", result.Error))
	}

	var defaults int64
	if err := tx.Model(&model.Membership{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Count(&defaults).Error; err != nil {
		tx.Rollback()
		return httpx.Error(c, apierr.Internal("membership lookup failed", err))
	}

	membership := model.Membership{
		UserID:    userID,
		TenantID:  tenant.ID,
		Role:      model.RoleOwner,
		IsDefault: defaults == 0,
		Active:    true,
	}

	if result := tx.Create(&membership); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create membership", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("membership creation failed", result.Error))
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit transaction", zap.Error(err))
		return httpx.Error(c, apierr.Internal("transaction commit failed", err))
	}

	log.Info("Tenant created",
		zap.String("name", tenant.Name),
		zap.Uint("id", tenant.ID),
		zap.Uint("owner_id", tenant.OwnerID))

	return c.JSON(http.StatusCreated, echo.Map{
		"ok":     true,
		"tenant": tenant,
	})
}

// ListUserTenants retrieves all tenants the authenticated user belongs to
func ListUserTenants(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("list")

	userID, ok := currentUserID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrUnauthenticated)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var memberships []model.Membership
	if result := database.GetDB().Preload("Tenant").
		Where("user_id = ? AND active = ?", userID, true).
		Find(&memberships); result.Error != nil {
		log.Error("Failed to retrieve user's tenants", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("tenant retrieval failed", result.Error))
	}

	type TenantResponse struct {
		ID          uint      `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Role        string    `json:"role"`
		IsDefault   bool      `json:"is_default"`
		CreatedAt   time.Time `json:"created_at"`
	}

	response := make([]TenantResponse, 0, len(memberships))
	for _, m := range memberships {
		response = append(response, TenantResponse{
			ID:          m.TenantID,
			Name:        m.Tenant.Name,
			Description: m.Tenant.Description,
			Role:        m.Role,
			IsDefault:   m.IsDefault,
			CreatedAt:   m.Tenant.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, response)
}

// GetTenant retrieves tenant details for a tenant the user is a member of
func GetTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("access")

	userID, ok := currentUserID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrUnauthenticated)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid tenant ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var tenant model.Tenant
	if result := database.GetDB().First(&tenant, id); result.Error != nil {
		log.Warn("Tenant not found", zap.Uint64("id", id))
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "tenant not found")
	}

	var membership model.Membership
	result := database.GetDB().
		Where("user_id = ? AND tenant_id = ? AND active = ?", userID, id, true).
		First(&membership)
	if result.Error != nil {
		log.Warn("Unauthorized tenant access attempt",
			zap.Uint("requesting_user_id", userID),
			zap.Uint64("tenant_id", id))
		return httpx.Error(c, apierr.ErrNotAMember)
	}

	return c.JSON(http.StatusOK, tenant)
}

// SelectTenant makes an explicit tenant selection for this session. Selecting
// a tenant the user does not belong to is rejected and leaves any previous
// selection in place.
func SelectTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("select")

	userID, ok := currentUserID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrUnauthenticated)
	}

	var req struct {
		TenantID uint `json:"tenant_id"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.TenantID == 0 {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "tenant_id is required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	res, err := resolver.SelectTenant(c.Request().Context(), userID, currentSession(c), req.TenantID)
	if err != nil {
		log.Warn("Tenant selection rejected",
			zap.Uint("user_id", userID),
			zap.Uint("tenant_id", req.TenantID),
			zap.Error(err))
		return httpx.Error(c, err)
	}

	prometheus.TenantSelectionCounter.Inc()
	log.Info("Tenant selected",
		zap.Uint("user_id", userID),
		zap.Uint("tenant_id", res.TenantID),
		zap.String("role", res.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"ok": true,
		"tenant": echo.Map{
			"id":   res.TenantID,
			"role": res.Role,
		},
	})
}

// SetDefaultTenant marks one membership as the user's default. Runs in a
// transaction that clears every other default first, keeping at most one.
func SetDefaultTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("set_default")

	userID, ok := currentUserID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrUnauthenticated)
	}

	var req struct {
		TenantID uint `json:"tenant_id"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.TenantID == 0 {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "tenant_id is required")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		return httpx.Error(c, apierr.Internal("database error", tx.Error))
	}

	var membership model.Membership
	result := tx.Where("user_id = ? AND tenant_id = ? AND active = ?", userID, req.TenantID, true).
		First(&membership)
	if result.Error != nil {
		tx.Rollback()
		log.Warn("Default tenant set rejected",
			zap.Uint("user_id", userID),
			zap.Uint("tenant_id", req.TenantID))
		return httpx.Error(c, apierr.ErrNotAMember)
	}

	if err := tx.Model(&model.Membership{}).Where("user_id = ?", userID).
		Update("is_default", false).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to clear default memberships", zap.Error(err))
		return httpx.Error(c, apierr.Internal("membership update failed", err))
	}

	membership.IsDefault = true
	if err := tx.Save(&membership).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to set default tenant", zap.Error(err))
		return httpx.Error(c, apierr.Internal("membership update failed", err))
	}

	if err := tx.Commit().Error; err != nil {
		return httpx.Error(c, apierr.Internal("transaction commit failed", err))
	}

	log.Info("Default tenant set",
		zap.Uint("user_id", userID),
		zap.Uint("tenant_id", req.TenantID))

	return c.JSON(http.StatusOK, echo.Map{
		"ok":        true,
		"tenant_id": req.TenantID,
	})
}
