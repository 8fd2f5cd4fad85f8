package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recruit-comms/internal/calls"
	"recruit-comms/internal/telephony"
	"recruit-comms/pkg/logger"
)

const twimlContentType = "text/xml; charset=utf-8"

// TwilioCallStatus applies a gateway status callback. Apart from a signature
// mismatch it always answers 200 so the gateway does not retry.
func (h Handlers) TwilioCallStatus(c *gin.Context) {
	log := logger.FromGin(c)
	form, err := telephony.ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("status callback parse failed", "err", err)
		h.emptyTwiML(c)
		return
	}

	if h.Webhook.ValidateSignature {
		if !h.signatureValid(c) {
			log.Warn("status callback signature rejected", "call_sid", form.CallSid)
			abort(c, http.StatusForbidden, "invalid signature")
			return
		}
	}

	if h.Calls != nil {
		out := h.Calls.HandleStatusWebhook(c.Request.Context(), calls.StatusUpdate{
			ExternalCallID:  form.CallSid,
			Status:          form.CallStatus,
			DurationSeconds: form.CallDuration,
		})
		log.Debug("status callback handled", "call_sid", form.CallSid, "status", form.CallStatus,
			"applied", out.Applied, "reason", out.Reason)
	}
	h.emptyTwiML(c)
}

func (h Handlers) signatureValid(c *gin.Context) bool {
	if h.Calls == nil {
		return false
	}
	token, err := h.Calls.WebhookAuthToken(c.Request.Context())
	if err != nil || token == "" {
		logger.FromGin(c).Warn("no auth token to verify status callback", "err", err)
		return false
	}
	return telephony.ValidSignature(token, h.signedURL(c.Request), c.Request.PostForm, c.GetHeader(telephony.SignatureHeader))
}

// signedURL rebuilds the absolute URL the gateway signed.
func (h Handlers) signedURL(r *http.Request) string {
	base := strings.TrimRight(h.Webhook.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
			scheme = p
		}
		base = scheme + "://" + r.Host
	}
	return base + r.URL.RequestURI()
}

func (h Handlers) emptyTwiML(c *gin.Context) {
	c.Data(http.StatusOK, twimlContentType, []byte(telephony.RenderEmptyTwiML()))
}
