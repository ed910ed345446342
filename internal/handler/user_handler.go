package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"zenamanage/internal/apierr"
	"zenamanage/internal/httpx"
	"zenamanage/internal/model"
	"zenamanage/pkg/database"
	"zenamanage/pkg/logger"
	"zenamanage/prometheus"
)

// GetProfile returns the authenticated user's profile
func GetProfile(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrUnauthenticated)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if result := database.GetDB().First(&user, userID); result.Error != nil {
		log.Error("User not found", zap.Uint("user_id", userID))
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "user not found")
	}

	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's name
func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrUnauthenticated)
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := database.GetDB().Model(&model.User{}).Where("id = ?", userID).
		Update("name", req.Name).Error; err != nil {
		log.Error("Failed to update profile", zap.Error(err))
		return httpx.Error(c, apierr.Internal("profile update failed", err))
	}

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ChangePassword verifies the current password and stores a new hash
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrUnauthenticated)
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.NewPassword == "" {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "new_password is required")
	}

	var user model.User
	if result := database.GetDB().First(&user, userID); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		log.Warn("Password change with wrong current password", zap.Uint("user_id", userID))
		prometheus.RecordAuthError("invalid_password")
		return httpx.Fail(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, "current password is incorrect")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return httpx.Error(c, apierr.Internal("password hashing failed", err))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := database.GetDB().Model(&user).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to change password", zap.Error(err))
		return httpx.Error(c, apierr.Internal("password change failed", err))
	}

	log.Info("Password changed", zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
