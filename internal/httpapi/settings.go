package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recruit-comms/internal/auth"
	"recruit-comms/internal/calls"
	"recruit-comms/internal/credentials"
	"recruit-comms/internal/telephony"
	"recruit-comms/pkg/logger"
)

type twilioSettingsResponse struct {
	AccountSID       string                 `json:"accountSid"`
	AuthToken        string                 `json:"authToken"`
	PhoneNumber      string                 `json:"phoneNumber"`
	IsConfigured     bool                   `json:"isConfigured"`
	ConnectionStatus calls.ConnectionStatus `json:"connectionStatus"`
}

type twilioSettingsRequest struct {
	AccountSID  *string `json:"accountSid"`
	AuthToken   *string `json:"authToken"`
	PhoneNumber *string `json:"phoneNumber"`
}

type twilioTestRequest struct {
	AccountSID  string `json:"accountSid"`
	AuthToken   string `json:"authToken"`
	PhoneNumber string `json:"phoneNumber"`
}

// maskSecret keeps the last four characters visible.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func (h Handlers) twilioSettings(c *gin.Context) (twilioSettingsResponse, bool) {
	s, err := h.Credentials.GetTwilioSettings(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("twilio settings read failed", "err", err)
		abort(c, http.StatusInternalServerError, "failed to load telephony settings")
		return twilioSettingsResponse{}, false
	}
	return twilioSettingsResponse{
		AccountSID:       s.AccountSID,
		AuthToken:        maskSecret(s.AuthToken),
		PhoneNumber:      s.PhoneNumber,
		IsConfigured:     s.IsConfigured,
		ConnectionStatus: h.Calls.GetConnectionStatus(c.Request.Context()),
	}, true
}

// GetTwilioSettings returns masked stored credentials and a live connection check.
func (h Handlers) GetTwilioSettings(c *gin.Context) {
	if h.Credentials == nil || h.Calls == nil {
		abort(c, http.StatusInternalServerError, "settings not configured")
		return
	}
	resp, ok := h.twilioSettings(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateTwilioSettings validates and persists the provided fields, then drops the
// orchestrator's memoized gateway so the next call uses them.
func (h Handlers) UpdateTwilioSettings(c *gin.Context) {
	if h.Credentials == nil || h.Calls == nil {
		abort(c, http.StatusInternalServerError, "settings not configured")
		return
	}
	var req twilioSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}

	var u credentials.TwilioSettingsUpdate
	var keys []string
	if v := trimmed(req.AccountSID); v != "" {
		if !telephony.IsAccountSID(v) {
			abort(c, http.StatusBadRequest, telephony.ErrInvalidAccountSID.Error())
			return
		}
		u.AccountSID = &v
		keys = append(keys, credentials.KeyAccountSID)
	}
	// A token containing the mask character is the GET response echoed back.
	if v := trimmed(req.AuthToken); v != "" && !strings.Contains(v, "*") {
		u.AuthToken = &v
		keys = append(keys, credentials.KeyAuthToken)
	}
	if v := trimmed(req.PhoneNumber); v != "" {
		if !telephony.IsE164(v) {
			abort(c, http.StatusBadRequest, telephony.ErrInvalidPhoneNumber.Error())
			return
		}
		u.PhoneNumber = &v
		keys = append(keys, credentials.KeyPhoneNumber)
	}
	if len(keys) == 0 {
		abort(c, http.StatusBadRequest, "no settings provided")
		return
	}

	if err := h.Credentials.SetTwilioSettings(c.Request.Context(), u); err != nil {
		if errors.Is(err, credentials.ErrEncryptionKeyMissing) {
			abort(c, http.StatusInternalServerError, "CREDENTIALS_ENCRYPTION_KEY must be set to store the auth token")
			return
		}
		logger.FromGin(c).Error("twilio settings write failed", "err", err)
		abort(c, http.StatusInternalServerError, "failed to save telephony settings")
		return
	}
	h.Calls.Reinitialize()

	if h.Audit != nil {
		oid, _ := auth.OrganizationID(c.Request.Context())
		if err := h.Audit.LogCredentialsUpdated(c.Request.Context(), oid, actor(c), credentials.CategoryTwilio, keys); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}

	resp, ok := h.twilioSettings(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TestTwilioSettings checks candidate credentials against the gateway without saving them.
func (h Handlers) TestTwilioSettings(c *gin.Context) {
	if h.Calls == nil {
		abort(c, http.StatusInternalServerError, "calls not configured")
		return
	}
	var req twilioTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	creds := telephony.Credentials{AccountSID: req.AccountSID, AuthToken: req.AuthToken, PhoneNumber: req.PhoneNumber}
	if err := telephony.ValidateCredentials(creds); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	st := h.Calls.TestConnection(c.Request.Context(), creds)
	if h.Audit != nil {
		id, _ := auth.IdentityFrom(c.Request.Context())
		meta := fmt.Sprintf(`{"connected":%t}`, st.Connected)
		if err := h.Audit.LogAdminAction(c.Request.Context(), id.OrganizationID, actor(c), "twilio connection test", meta); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, st)
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
