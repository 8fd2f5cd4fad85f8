package calls

import (
	"context"
	"errors"
	"strings"
)

// HandleStatusWebhook reconciles one gateway status callback. It never returns
// an error: unknown calls and rejected transitions are logged and reported in
// the outcome, so the HTTP layer can always acknowledge the gateway.
func (o *Orchestrator) HandleStatusWebhook(ctx context.Context, u StatusUpdate) WebhookOutcome {
	sid := strings.TrimSpace(u.ExternalCallID)
	if sid == "" {
		o.ignored(ReasonMissingSID)
		return WebhookOutcome{Reason: ReasonMissingSID}
	}

	call, err := o.calls.GetByExternalID(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			o.log.Info("status callback for unknown call", "external_call_id", sid, "status", u.Status)
			o.ignored(ReasonUnknownCall)
			return WebhookOutcome{Reason: ReasonUnknownCall}
		}
		o.log.Error("call lookup failed", "external_call_id", sid, "err", err)
		return WebhookOutcome{Reason: ReasonStoreFailure}
	}

	reported, ok := NormalizeGatewayStatus(u.Status)
	if !ok {
		return o.ignore(ctx, call, u, ReasonUnknownStatus)
	}
	if reason := decide(call.Status, reported); reason != "" {
		return o.ignore(ctx, call, u, reason)
	}

	upd := Update{Status: reported, UpdatedAt: o.clock()}
	payload := map[string]any{
		"from":          call.Status,
		"to":            reported,
		"gatewayStatus": u.Status,
	}
	if u.DurationSeconds != nil && *u.DurationSeconds > 0 {
		d := *u.DurationSeconds
		cost := o.pricing.CallCost(d)
		upd.DurationSeconds = &d
		upd.CostCents = &cost.TotalMinor
		payload["durationSeconds"] = d
		payload["billableMinutes"] = cost.BillableMinutes
		payload["costCents"] = cost.TotalMinor
	}

	ev := o.event(call.ID, EventType(reported), payload)
	if err := o.calls.ApplyTransition(ctx, call.ID, call.Status, upd, ev); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return o.ignore(ctx, call, u, ReasonConcurrent)
		}
		o.log.Error("call transition write failed", "call_id", call.ID, "from", call.Status, "to", reported, "err", err)
		return WebhookOutcome{CallID: call.ID, Reason: ReasonStoreFailure}
	}

	o.log.Info("call status updated", "call_id", call.ID, "from", call.Status, "to", reported)
	if o.metrics != nil {
		o.metrics.CallTransition(string(call.Status), string(reported))
	}
	call.Status = reported
	call.UpdatedAt = upd.UpdatedAt
	if upd.DurationSeconds != nil {
		call.DurationSeconds = *upd.DurationSeconds
		call.CostCents = *upd.CostCents
	}
	o.publish(ctx, call, ev)

	out := WebhookOutcome{CallID: call.ID, Applied: true, Status: reported}
	if reported == StatusCompleted {
		if o.attachRecording(ctx, call) {
			out.Status = StatusRecordingAvailable
		}
	}
	return out
}

// attachRecording moves a completed call to recording-available when the
// gateway has a recording. Failures leave the call completed.
func (o *Orchestrator) attachRecording(ctx context.Context, call Call) bool {
	rg, err := o.handle.load(ctx)
	if err != nil || rg.gateway == nil {
		o.log.Warn("recording fetch skipped: no telephony gateway", "call_id", call.ID, "err", err)
		return false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, recordingFetchTimeout)
	defer cancel()
	url, err := rg.gateway.RecordingURL(fetchCtx, call.ExternalID)
	if err != nil {
		o.log.Warn("recording fetch failed", "call_id", call.ID, "err", err)
		return false
	}
	if url == "" {
		o.log.Info("no recording for call", "call_id", call.ID)
		return false
	}

	upd := Update{Status: StatusRecordingAvailable, RecordingURL: &url, UpdatedAt: o.clock()}
	ev := o.event(call.ID, EventType(StatusRecordingAvailable), map[string]any{"recordingUrl": url})
	if err := o.calls.ApplyTransition(ctx, call.ID, StatusCompleted, upd, ev); err != nil {
		o.log.Warn("recording transition not applied", "call_id", call.ID, "err", err)
		return false
	}
	if o.metrics != nil {
		o.metrics.CallTransition(string(StatusCompleted), string(StatusRecordingAvailable))
	}
	call.Status = StatusRecordingAvailable
	call.RecordingURL = url
	call.UpdatedAt = upd.UpdatedAt
	o.publish(ctx, call, ev)
	return true
}

// ignore records a rejected callback against a known call.
func (o *Orchestrator) ignore(ctx context.Context, call Call, u StatusUpdate, reason string) WebhookOutcome {
	o.log.Info("status callback ignored",
		"call_id", call.ID,
		"current", call.Status,
		"reported", u.Status,
		"reason", reason,
	)
	o.ignored(reason)
	ev := o.event(call.ID, EventWebhookIgnored, map[string]any{
		"current":       call.Status,
		"gatewayStatus": u.Status,
		"reason":        reason,
	})
	if err := o.calls.AppendEvent(ctx, ev); err != nil {
		o.log.Warn("ignored-callback event not saved", "call_id", call.ID, "err", err)
	}
	return WebhookOutcome{CallID: call.ID, Status: call.Status, Reason: reason}
}

func (o *Orchestrator) ignored(reason string) {
	if o.metrics != nil {
		o.metrics.WebhookIgnored(reason)
	}
}
