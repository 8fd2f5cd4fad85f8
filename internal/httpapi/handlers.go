package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recruit-comms/internal/audit"
	"recruit-comms/internal/auth"
	"recruit-comms/internal/calls"
	"recruit-comms/internal/credentials"
	"recruit-comms/internal/notify"
	"recruit-comms/internal/queue"
	"recruit-comms/internal/rbac"
	"recruit-comms/internal/reporting"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Calls       *calls.Orchestrator
	Credentials *credentials.Store
	Notify      *notify.Dispatcher
	Attempts    notify.AttemptRepository
	Audit       *audit.Service
	Reports     *reporting.Service
	// VoiceQueue receives scheduled calls; nil disables POST /v1/calls/schedule.
	VoiceQueue *queue.Queue
	Webhook    WebhookOptions
	Clock      func() time.Time
}

// WebhookOptions controls inbound gateway callback verification.
type WebhookOptions struct {
	ValidateSignature bool
	// PublicBaseURL is the externally visible origin used to rebuild the signed URL.
	// When empty the request's scheme and host are used.
	PublicBaseURL string
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

// Healthz is the liveness probe.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// callerOrganization returns the organization from the verified token, aborting with 401 when absent.
func callerOrganization(c *gin.Context) (string, bool) {
	oid, err := auth.OrganizationID(c.Request.Context())
	if err != nil || oid == "" {
		abort(c, http.StatusUnauthorized, "organization_id required")
		return "", false
	}
	return oid, true
}

// canAccess reports whether the caller may see a resource owned by orgID.
func canAccess(c *gin.Context, orgID string) bool {
	id, _ := auth.IdentityFrom(c.Request.Context())
	if rbac.IsSuperAdmin(id.Role) {
		return true
	}
	return id.OrganizationID != "" && id.OrganizationID == orgID
}

func actor(c *gin.Context) audit.Actor {
	id, _ := auth.IdentityFrom(c.Request.Context())
	return audit.Actor{UserID: id.UserID, Role: id.Role, IP: c.ClientIP()}
}
