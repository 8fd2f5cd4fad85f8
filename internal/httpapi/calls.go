package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"recruit-comms/internal/calls"
	"recruit-comms/internal/jobs"
	"recruit-comms/internal/telephony"
	"recruit-comms/pkg/logger"
)

type scheduleCallRequest struct {
	calls.CallOptions
	// RunAt is optional; absent or past means as soon as a worker is free.
	RunAt *time.Time `json:"runAt,omitempty"`
}

func statusForKind(k calls.ErrorKind) int {
	switch k {
	case calls.KindValidation:
		return http.StatusBadRequest
	case calls.KindNotFound:
		return http.StatusNotFound
	case calls.KindConfiguration:
		return http.StatusServiceUnavailable
	case calls.KindGateway:
		return http.StatusBadGateway
	case calls.KindTimeout:
		return http.StatusGatewayTimeout
	case calls.KindUnrecorded:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// InitiateCall places a call on behalf of the caller's organization.
func (h Handlers) InitiateCall(c *gin.Context) {
	if h.Calls == nil {
		abort(c, http.StatusInternalServerError, "calls not configured")
		return
	}
	oid, ok := callerOrganization(c)
	if !ok {
		return
	}
	var opts calls.CallOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	opts.OrganizationID = oid

	res := h.Calls.InitiateCall(c.Request.Context(), opts)
	if !res.Success {
		c.AbortWithStatusJSON(statusForKind(res.Kind), res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ScheduleCall enqueues a call on the voice-calls queue.
func (h Handlers) ScheduleCall(c *gin.Context) {
	if h.VoiceQueue == nil {
		abort(c, http.StatusServiceUnavailable, "call scheduling not configured")
		return
	}
	oid, ok := callerOrganization(c)
	if !ok {
		return
	}
	var req scheduleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.To = strings.TrimSpace(req.To)
	if !telephony.IsE164(req.To) {
		abort(c, http.StatusBadRequest, telephony.ErrInvalidPhoneNumber.Error())
		return
	}
	req.OrganizationID = oid

	var at time.Time
	if req.RunAt != nil {
		at = *req.RunAt
	}
	job, err := jobs.ScheduleCall(c.Request.Context(), h.VoiceQueue, req.CallOptions, at, h.now())
	if err != nil {
		logger.FromGin(c).Error("schedule call failed", "err", err)
		abort(c, http.StatusInternalServerError, "failed to schedule call")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": job.ID, "queue": job.Queue, "status": job.Status})
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil {
		abort(c, http.StatusInternalServerError, "calls not configured")
		return
	}
	d, err := h.Calls.GetCallDetails(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		h.callLookupFailed(c, err)
		return
	}
	if !canAccess(c, d.OrganizationID) {
		abort(c, http.StatusNotFound, "call not found")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) GetCallEvents(c *gin.Context) {
	if h.Calls == nil {
		abort(c, http.StatusInternalServerError, "calls not configured")
		return
	}
	callID := c.Param("call_id")
	call, err := h.Calls.GetCall(c.Request.Context(), callID)
	if err != nil {
		h.callLookupFailed(c, err)
		return
	}
	if !canAccess(c, call.OrganizationID) {
		abort(c, http.StatusNotFound, "call not found")
		return
	}
	evs, err := h.Calls.GetCallEvents(c.Request.Context(), callID)
	if err != nil {
		h.callLookupFailed(c, err)
		return
	}
	if evs == nil {
		evs = []calls.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

// GetOrganizationCalls lists calls newest first. Route must sit behind rbac.RequireSameOrganization.
func (h Handlers) GetOrganizationCalls(c *gin.Context) {
	if h.Calls == nil {
		abort(c, http.StatusInternalServerError, "calls not configured")
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		abort(c, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		abort(c, http.StatusBadRequest, "offset must be an integer")
		return
	}
	list, err := h.Calls.GetOrganizationCalls(c.Request.Context(), c.Param("org_id"), limit, offset)
	if err != nil {
		if errors.Is(err, calls.ErrInvalidArgument) {
			abort(c, http.StatusBadRequest, "organization id required")
			return
		}
		logger.FromGin(c).Error("list calls failed", "err", err)
		abort(c, http.StatusInternalServerError, "failed to list calls")
		return
	}
	if list == nil {
		list = []calls.Call{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": list})
}

func (h Handlers) callLookupFailed(c *gin.Context, err error) {
	if errors.Is(err, calls.ErrNotFound) {
		abort(c, http.StatusNotFound, "call not found")
		return
	}
	logger.FromGin(c).Error("call lookup failed", "err", err)
	abort(c, http.StatusInternalServerError, "failed to load call")
}

// queryInt returns 0 when the parameter is absent.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
