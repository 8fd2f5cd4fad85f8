package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recruit-comms/internal/reporting"
	"recruit-comms/pkg/logger"
)

const defaultSummaryWindow = 30 * 24 * time.Hour

// GetCallsSummary aggregates the organization's calls over ?from&to (RFC3339).
// Without them the last 30 days are summarized.
func (h Handlers) GetCallsSummary(c *gin.Context) {
	if h.Reports == nil {
		abort(c, http.StatusInternalServerError, "reporting not configured")
		return
	}
	to := h.now()
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			abort(c, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		to = t
	}
	from := to.Add(-defaultSummaryWindow)
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			abort(c, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		from = t
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		OrganizationID: c.Param("org_id"),
		Range:          reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			abort(c, http.StatusBadRequest, "invalid range")
			return
		}
		logger.FromGin(c).Error("calls summary failed", "err", err)
		abort(c, http.StatusInternalServerError, "failed to summarize calls")
		return
	}
	c.JSON(http.StatusOK, out)
}
