package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recruit-comms/internal/auth"
	"recruit-comms/internal/notify"
	"recruit-comms/pkg/logger"
)

type notificationTestRequest struct {
	Provider string `json:"provider"`
	To       string `json:"to"`
}

// TestNotification sends a test message through exactly the named provider.
func (h Handlers) TestNotification(c *gin.Context) {
	if h.Notify == nil {
		abort(c, http.StatusInternalServerError, "notifications not configured")
		return
	}
	var req notificationTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = h.Notify.DefaultProvider()
	}
	if provider == "" {
		abort(c, http.StatusBadRequest, "no notification provider configured")
		return
	}

	err := h.Notify.TestProvider(c.Request.Context(), provider, req.To)
	if h.Audit != nil {
		oid, _ := auth.OrganizationID(c.Request.Context())
		if aerr := h.Audit.LogNotificationTest(c.Request.Context(), oid, actor(c), provider, err == nil); aerr != nil {
			logger.FromGin(c).Warn("audit append failed", "err", aerr)
		}
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "provider": provider})
	case errors.Is(err, notify.ErrProviderNotFound):
		abort(c, http.StatusNotFound, err.Error())
	case errors.Is(err, notify.ErrProviderNotConfigured), errors.Is(err, notify.ErrInvalidRecipient):
		abort(c, http.StatusBadRequest, err.Error())
	default:
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"success": false, "provider": provider, "error": err.Error()})
	}
}

// ListNotificationAttempts filters the attempt log by recipient or provider.
func (h Handlers) ListNotificationAttempts(c *gin.Context) {
	if h.Attempts == nil {
		abort(c, http.StatusInternalServerError, "notification log not configured")
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		abort(c, http.StatusBadRequest, "limit must be an integer")
		return
	}
	var attempts []notify.Attempt
	switch recipient, provider := strings.TrimSpace(c.Query("recipient")), strings.TrimSpace(c.Query("provider")); {
	case recipient != "":
		attempts, err = h.Attempts.ListByRecipient(c.Request.Context(), recipient, limit)
	case provider != "":
		attempts, err = h.Attempts.ListByProvider(c.Request.Context(), provider, limit)
	default:
		abort(c, http.StatusBadRequest, "recipient or provider required")
		return
	}
	if err != nil {
		logger.FromGin(c).Error("list notification attempts failed", "err", err)
		abort(c, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []notify.Attempt{}
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}
