package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"zenamanage/internal/apierr"
	"zenamanage/internal/httpx"
	"zenamanage/internal/model"
	"zenamanage/pkg/database"
	"zenamanage/pkg/jwtutil"
	"zenamanage/pkg/logger"
	"zenamanage/prometheus"
)

// Register creates a new user account
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse register request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "email and password are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return httpx.Error(c, apierr.Internal("password hashing failed", err))
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	user := model.User{
		Email:    req.Email,
		Password: string(hashed),
		Name:     req.Name,
	}

	if result := database.GetDB().Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("registration_failed")
		return httpx.Fail(c, http.StatusConflict, apierr.CodeInvalidRequest, "email already registered")
	}

	log.Info("User registered", zap.String("email", user.Email), zap.Uint("id", user.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"ok": true,
		"user": echo.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// Login authenticates a user and issues a JWT bound to a fresh session id.
// Tenant selection is not part of the token; it lives in the session store
// and is resolved per request.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return httpx.Fail(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return httpx.Fail(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, "invalid credentials")
	}

	sessionID := uuid.New().String()
	token, err := jwtutil.GenerateToken(user.Email, user.ID, sessionID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return httpx.Error(c, apierr.Internal("token generation failed", err))
	}

	log.Info("User logged in", zap.String("email", user.Email), zap.Uint("user_id", user.ID))

	return c.JSON(http.StatusOK, echo.Map{
		"ok":    true,
		"token": token,
		"user": echo.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// Logout clears the session's tenant selection. The JWT itself expires on
// its own; there is no server-side token revocation.
func Logout(c echo.Context) error {
	log := logger.FromContext(c)

	if err := currentSession(c).ClearSelectedTenant(c.Request().Context()); err != nil {
		log.Error("Failed to clear session", zap.Error(err))
		return httpx.Error(c, apierr.Internal("session clear failed", err))
	}

	log.Info("User logged out")
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
