package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recruit-comms/internal/audit"
	"recruit-comms/internal/auth"
	"recruit-comms/internal/rbac"
	"recruit-comms/pkg/logger"
)

// hiddenActor replaces hidden-role actors for callers outside the platform.
const hiddenActor = "platform"

// ListAuditEvents returns the caller's organization audit trail, newest first.
func (h Handlers) ListAuditEvents(c *gin.Context) {
	if h.Audit == nil {
		abort(c, http.StatusInternalServerError, "audit not configured")
		return
	}
	org, ok := callerOrganization(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		abort(c, http.StatusBadRequest, "limit must be an integer")
		return
	}
	events, err := h.Audit.List(c.Request.Context(), org, limit)
	if err != nil {
		logger.FromGin(c).Error("list audit events failed", "err", err)
		abort(c, http.StatusInternalServerError, "failed to list audit events")
		return
	}

	id, _ := auth.IdentityFrom(c.Request.Context())
	if !rbac.IsSuperAdmin(id.Role) && !rbac.IsHiddenRole(id.Role) {
		for i := range events {
			if rbac.IsHiddenRole(events[i].ActorRole) {
				events[i].ActorUserID = ""
				events[i].ActorRole = hiddenActor
				events[i].IPAddress = ""
			}
		}
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
