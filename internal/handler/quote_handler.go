package handler

import (
	"fmt"
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

// ListQuotes returns the active tenant's quotes, optionally filtered by
// status or client.
func ListQuotes(c echo.Context) error {
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
	if clientID := c.QueryParam("client_id"); clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}

	var quotes []model.Quote
	if result := q.Order("created_at DESC").Find(&quotes); result.Error != nil {
		log.Error("Failed to list quotes", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("quote listing failed", result.Error))
	}

	return c.JSON(http.StatusOK, quotes)
}

// CreateQuote creates a quote for a client of the active tenant. The quote
// number is generated per tenant when not supplied.
func CreateQuote(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	var req struct {
		ClientID    uint       `json:"client_id"`
		ProjectID   *uint      `json:"project_id,omitempty"`
		Number      string     `json:"number"`
		AmountCents int64      `json:"amount_cents"`
		Currency    string     `json:"currency"`
		ValidUntil  *time.Time `json:"valid_until,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}
	if req.ClientID == 0 {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "client_id is required")
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}

	var client model.Client
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&client, req.ClientID); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "client not found")
	}

	if req.ProjectID != nil {
		var project model.Project
		if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
			First(&project, *req.ProjectID); result.Error != nil {
			return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "project not found")
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if req.Number == "" {
		var count int64
		if err := database.GetDB().Model(&model.Quote{}).Scopes(scope.Tenant(tenantID)).
			Count(&count).Error; err != nil {
			return httpx.Error(c, apierr.Internal("quote numbering failed", err))
		}
		req.Number = fmt.Sprintf("Q-%d-%04d", time.Now().Year(), count+1)
	}

	quote := model.Quote{
		TenantID:    tenantID,
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		Number:      req.Number,
		Status:      model.QuoteStatusDraft,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		ValidUntil:  req.ValidUntil,
	}

	if result := database.GetDB().Create(&quote); result.Error != nil {
		log.Error("Failed to create quote", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("quote creation failed", result.Error))
	}

	log.Info("Quote created",
		zap.Uint("quote_id", quote.ID),
		zap.String("number", quote.Number))

	return c.JSON(http.StatusCreated, quote)
}

// GetQuote returns one quote of the active tenant
func GetQuote(c echo.Context) error {
	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid quote ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var quote model.Quote
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).Preload("Client").
		First(&quote, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "quote not found")
	}

	return c.JSON(http.StatusOK, quote)
}

// UpdateQuote applies partial updates to a quote of the active tenant
func UpdateQuote(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid quote ID")
	}

	var quote model.Quote
	if result := database.GetDB().Scopes(scope.Tenant(tenantID)).
		First(&quote, id); result.Error != nil {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "quote not found")
	}

	var req struct {
		Status      *string    `json:"status,omitempty"`
		AmountCents *int64     `json:"amount_cents,omitempty"`
		Currency    *string    `json:"currency,omitempty"`
		ValidUntil  *time.Time `json:"valid_until,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid request")
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.AmountCents != nil {
		updates["amount_cents"] = *req.AmountCents
	}
	if req.Currency != nil {
		updates["currency"] = *req.Currency
	}
	if req.ValidUntil != nil {
		updates["valid_until"] = *req.ValidUntil
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if len(updates) > 0 {
		if err := database.GetDB().Model(&quote).Updates(updates).Error; err != nil {
			log.Error("Failed to update quote", zap.Error(err))
			return httpx.Error(c, apierr.Internal("quote update failed", err))
		}
	}

	return c.JSON(http.StatusOK, quote)
}

// DeleteQuote soft-deletes a quote of the active tenant
func DeleteQuote(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := activeTenantID(c)
	if !ok {
		return httpx.Error(c, apierr.ErrNoActiveTenant)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, apierr.CodeInvalidRequest, "invalid quote ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().Scopes(scope.Tenant(tenantID)).Delete(&model.Quote{}, id)
	if result.Error != nil {
		log.Error("Failed to delete quote", zap.Error(result.Error))
		return httpx.Error(c, apierr.Internal("quote deletion failed", result.Error))
	}
	if result.RowsAffected == 0 {
		return httpx.Fail(c, http.StatusNotFound, apierr.CodeNotFound, "quote not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
