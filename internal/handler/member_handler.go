package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"zenamanage/internal/apierr"
	"zenamanage/internal/httpx"
	"zenamanage/internal/model"
	"zenamanage/pkg/database"
	"zenamanage/pkg/logger"
	"zenamanage/prometheus"
)

// ListMembers returns the active tenant's memberships
func ListMembers(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var memberships []model.Membership
	if result := database.GetDB().Preload("User").
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&memberships); result.Error != nil {
		log.Error("Failed to list members", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("member listing failed", result.Error))
	}

	type MemberResponse struct {
		UserID    uint      `json:"user_id"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		Role      string    `json:"role"`
		IsDefault bool      `json:"is_default"`
		JoinedAt  time.Time `json:"joined_at"`
	}

	response := make([]MemberResponse, 0, len(memberships))
	for _, m := range memberships {
		response = append(response, MemberResponse{
			UserID:    m.UserID,
			Email:     m.User.Email,
			Name:      m.User.Name,
			Role:      m.Role,
			IsDefault: m.IsDefault,
			JoinedAt:  m.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, response)
}

// InviteMember adds a user to the active tenant by email. An existing member
// gets their role updated instead.
func InviteMember(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("add_user")

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.Email == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "email is required")
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if result := database.GetDB().Where("email = ?", req.Email).First(&user); result.Error != nil {
		log.Warn("Invited user not found", zap.String("email", req.Email))
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "user not found")
	}

	// Removed members leave a soft-deleted row that still occupies the
	// (user_id, tenant_id) unique index, so the lookup must be unscoped and
	// a re-invite restores that row instead of inserting a new one.
	var existing model.Membership
	result := database.GetDB().Unscoped().
		Where("user_id = ? AND tenant_id = ?", user.ID, tenantID).
		First(&existing)
	if result.Error == nil {
		removed := existing.DeletedAt.Valid
		if removed || existing.Role != req.Role || !existing.Active {
			existing.Role = req.Role
			existing.Active = true
			if removed {
				existing.DeletedAt = gorm.DeletedAt{}
				existing.IsDefault = false
			}
			if err := database.GetDB().Unscoped().Save(&existing).Error; err != nil {
				log.Error("Failed to update member role", zap.Error(err))
				return httpx.Error(c, apierr.Internal("member update failed", err))
			}
			log.Info("Member role updated",
				zap.Uint("tenant_id", tenantID),
				zap.String("email", req.Email),
				zap.String("role", req.Role),
				zap.Bool("restored", removed))
		}
		return c.JSON(http.StatusOK, echo.Map{
			"ok":         true,
			"membership": existing,
		})
	}

	membership := model.Membership{
		UserID:    user.ID,
		TenantID:  tenantID,
		Role:      req.Role,
		IsDefault: false,
		Active:    true,
	}

	if err := database.GetDB().Create(&membership).Error; err != nil {
		log.Error("Failed to add member", zap.Error(err))
		return httpx.Error(c, apierr.Internal("member creation failed", err))
	}

	log.Info("Member added",
		zap.Uint("tenant_id", tenantID),
		zap.String("email", req.Email),
		zap.String("role", req.Role))

	return c.JSON(http.StatusCreated, echo.Map{
		"ok":         true,
		"membership": membership,
	})
}

// UpdateMemberRole changes a member's role within the active tenant
func UpdateMemberRole(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("update_role")

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid user ID")
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.Role == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "role is required")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	var tenant model.Tenant
	if result := database.GetDB().First(&tenant, tenantID); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "tenant not found")
	}
	if tenant.OwnerID == uint(targetID) {
		log.Warn("Attempted to change tenant owner's role",
			zap.Uint("tenant_id", tenantID),
			zap.Uint64("owner_id", targetID))
		return httpx.Fail(c, http.StatusForbidden, apierr.CodePermissionDenied, "cannot change the tenant owner's role")
	}

	result := database.GetDB().Model(&model.Membership{}).
		Where("user_id = ? AND tenant_id = ?", targetID, tenantID).
		Update("role", req.Role)
	if result.Error != nil {
		log.Error("Failed to update member role", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("member update failed", result.Error))
	}
	if result.RowsAffected == 0 {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "user is not a member of this tenant")
	}

	log.Info("Member role changed",
		zap.Uint("tenant_id", tenantID),
		zap.Uint64("user_id", targetID),
		zap.String("role", req.Role))

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// RemoveMember removes a user from the active tenant. The tenant owner
// cannot be removed.
func RemoveMember(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("remove_user")

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid user ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	var tenant model.Tenant
	if result := database.GetDB().First(&tenant, tenantID); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "tenant not found")
	}

	if tenant.OwnerID == uint(targetID) {
		log.Warn("Attempted to remove tenant owner",
			zap.Uint("tenant_id", tenantID),
			zap.Uint64("owner_id", targetID))
		return httpx.Fail(c, http.StatusForbidden, apierr.CodePermissionDenied, "cannot remove tenant owner")
	}

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		return httpx.Error(c, apierr.Internal("database error", tx.Error))
	}

	result := tx.
		Where("user_id = ? AND tenant_id = ?", targetID, tenantID).
		Delete(&model.Membership{})
	if result.Error != nil {
		tx.Rollback()
		log.Error("Failed to remove member", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("member removal failed", result.Error))
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "user is not a member of this tenant")
	}

	// If the removed tenant was the user's legacy pointer, repoint it to a
	// remaining active membership or clear it, in the same transaction as the
	// delete. A dangling pointer would keep resolving the removed tenant via
	// the legacy fallback, which performs no membership check.
	var user model.User
	if err := tx.First(&user, targetID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			tx.Rollback()
			log.Error("Failed to load removed member", zap.Error(err))
			return httpx.Error(c, apierr.Internal("member removal failed", err))
		}
	} else if user.TenantID != nil && *user.TenantID == tenantID {
		var other model.Membership
		err := tx.
			Where("user_id = ? AND tenant_id != ? AND active = ?", targetID, tenantID, true).
			First(&other).Error
		switch {
		case err == nil:
			if err := tx.Model(&user).Update("tenant_id", other.TenantID).Error; err != nil {
				tx.Rollback()
				log.Error("Failed to repoint legacy tenant", zap.Error(err))
				return httpx.Error(c, apierr.Internal("member removal failed", err))
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Model(&user).Update("tenant_id", nil).Error; err != nil {
				tx.Rollback()
				log.Error("Failed to clear legacy tenant", zap.Error(err))
				return httpx.Error(c, apierr.Internal("member removal failed", err))
			}
		default:
			tx.Rollback()
			log.Error("Failed to look up replacement membership", zap.Error(err))
			return httpx.Error(c, apierr.Internal("member removal failed", err))
		}
	}

	if err := tx.Commit().Error; err != nil {
		return httpx.Error(c, apierr.Internal("transaction commit failed", err))
	}

	log.Info("Member removed",
		zap.Uint("tenant_id", tenantID),
		zap.Uint64("user_id", targetID))

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
