package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recruit-comms/internal/app"
	"recruit-comms/internal/auth"
	"recruit-comms/internal/bridge"
	"recruit-comms/internal/httpapi"
	"recruit-comms/internal/rbac"
	"recruit-comms/internal/reporting"
)

// registerRoutes wires HTTP routes to handlers.
func registerRoutes(r *gin.Engine, a *app.App, authMW gin.HandlerFunc) {
	cfg := a.Config
	h := httpapi.Handlers{
		Calls:       a.Calls,
		Credentials: a.Credentials,
		Notify:      a.Notify,
		Attempts:    a.Attempts,
		Audit:       a.Audit,
		Reports:     reporting.NewService(a.CallRepo),
		VoiceQueue:  a.Queues.VoiceCalls(),
		Webhook: httpapi.WebhookOptions{
			ValidateSignature: cfg.Twilio.ValidateSignature,
			PublicBaseURL:     cfg.Voice.PublicBaseURL,
		},
	}

	// public
	r.GET("/healthz", httpapi.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks (public). Signature validation is controlled by TWILIO_VALIDATE_SIGNATURE.
	r.POST("/webhooks/twilio/call-status", h.TwilioCallStatus)

	media := bridge.NewHandler(bridge.Config{
		RealtimeURL:  cfg.AI.RealtimeURL,
		Model:        cfg.AI.Model,
		APIKey:       cfg.AI.APIKey,
		DefaultVoice: cfg.Voice.DefaultVoice,
	}, a.Calls, a.Log)
	r.GET("/media-stream", gin.WrapH(media))

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW, rbac.RequireOrganization())
	{
		v1.GET("/me", func(c *gin.Context) {
			id, _ := auth.IdentityFrom(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "organization_id": id.OrganizationID, "role": id.Role})
		})

		// CALLS routes
		callsGroup := v1.Group("/calls")
		{
			callsGroup.POST("", rbac.RequireAnyRole(rbac.CallOperators...), h.InitiateCall)
			callsGroup.POST("/schedule", rbac.RequireAnyRole(rbac.CallOperators...), h.ScheduleCall)
			callsGroup.GET("/:call_id", rbac.RequireAnyRole(rbac.Readers...), h.GetCall)
			callsGroup.GET("/:call_id/events", rbac.RequireAnyRole(rbac.Readers...), h.GetCallEvents)
		}

		orgs := v1.Group("/organizations/:org_id", rbac.RequireSameOrganization("org_id"), rbac.RequireAnyRole(rbac.Readers...))
		{
			orgs.GET("/calls", h.GetOrganizationCalls)
			orgs.GET("/calls/summary", h.GetCallsSummary)
		}

		v1.GET("/admin/audit", rbac.RequireAnyRole(rbac.AuditReaders...), h.ListAuditEvents)

		// ADMIN routes; support is not an admin.
		admin := v1.Group("/admin")
		{
			admin.POST("/notifications/test", rbac.RequireAnyRole(rbac.Admins...), h.TestNotification)

			// Telephony credentials and the attempt log are shared by every organization.
			platform := admin.Group("", rbac.RequireAnyRole(rbac.PlatformAdmins...))
			platform.GET("/settings/twilio", h.GetTwilioSettings)
			platform.PUT("/settings/twilio", h.UpdateTwilioSettings)
			platform.POST("/settings/twilio/test", h.TestTwilioSettings)
			platform.GET("/notifications/attempts", h.ListNotificationAttempts)
		}
	}
}
