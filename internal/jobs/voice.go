package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"recruit-comms/internal/calls"
	"recruit-comms/internal/queue"
	"recruit-comms/pkg/utils"
)

var ErrOrganizationAtCapacity = errors.New("jobs: organization call concurrency limit reached")

type VoiceCallOptions struct {
	// Redis backs the per-organization placement cap; nil disables it.
	Redis    redis.Cmdable
	OrgLimit int
	SlotTTL  time.Duration
	Logger   *slog.Logger
}

// VoiceCallHandler places queued calls, at most OrgLimit concurrently per organization.
type VoiceCallHandler struct {
	calls CallPlacer
	slots *utils.SlotLimiter
	log   *slog.Logger
}

func NewVoiceCallHandler(placer CallPlacer, opts VoiceCallOptions) *VoiceCallHandler {
	if opts.SlotTTL <= 0 {
		opts.SlotTTL = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &VoiceCallHandler{calls: placer, log: opts.Logger.With("component", "jobs.voice")}
	if opts.Redis != nil && opts.OrgLimit > 0 {
		// Only fails on a nil client or non-positive limit/TTL, all excluded above.
		h.slots, _ = utils.NewSlotLimiter(opts.Redis, opts.OrgLimit, opts.SlotTTL)
	}
	return h
}

func (h *VoiceCallHandler) Handle(ctx context.Context, job *queue.Job) error {
	var opts calls.CallOptions
	if err := job.Decode(&opts); err != nil {
		return queue.Permanent(fmt.Errorf("decode call options: %w", err))
	}
	res, err := h.Place(ctx, opts)
	if err != nil {
		return err
	}
	h.log.Info("queued call placed", "job_id", job.ID, "call_id", res.CallID)
	return nil
}

// Place initiates a call under the organization cap and converts the result to
// a queue error. Only gateway rejections and pre-dial internal failures are
// retried; a call that may have reached the candidate is never placed again.
func (h *VoiceCallHandler) Place(ctx context.Context, opts calls.CallOptions) (calls.InitiateResult, error) {
	if h.slots != nil {
		key, holder := capKey(opts.OrganizationID), uuid.NewString()
		ok, err := h.slots.Acquire(ctx, key, holder)
		if err != nil {
			return calls.InitiateResult{}, fmt.Errorf("acquire call slot: %w", err)
		}
		if !ok {
			return calls.InitiateResult{}, ErrOrganizationAtCapacity
		}
		defer func() {
			if err := h.slots.Release(context.WithoutCancel(ctx), key, holder); err != nil {
				h.log.Warn("release call slot failed", "key", key, "err", err)
			}
		}()
	}

	res := h.calls.InitiateCall(ctx, opts)
	if res.Success {
		return res, nil
	}
	err := fmt.Errorf("initiate call (%s): %s", res.Kind, res.Error)
	if !res.Retryable() {
		return res, queue.Permanent(err)
	}
	return res, err
}

func capKey(orgID string) string {
	if orgID == "" {
		return "comms:voice:cap:_unscoped"
	}
	return "comms:voice:cap:" + orgID
}
