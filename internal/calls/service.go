package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"recruit-comms/internal/pricing"
	"recruit-comms/internal/telephony"
)

const (
	defaultPlaceCallTimeout = 15 * time.Second
	connectionCheckTimeout  = 10 * time.Second
	recordingFetchTimeout   = 10 * time.Second

	defaultListLimit = 20
	maxListLimit     = 100
)

var ErrInvalidArgument = errors.New("invalid argument")

// EventPublisher fans call events out to other systems. Publishing is best-effort.
type EventPublisher interface {
	PublishCallEvent(ctx context.Context, c Call, e Event) error
}

// MetricsSink is implemented by internal/metrics.PrometheusSink.
type MetricsSink interface {
	CallPlacement(outcome string)
	CallTransition(from, to string)
	WebhookIgnored(reason string)
}

type Settings struct {
	AIAPIKey          string
	MediaStreamURL    string
	StatusCallbackURL string
	PlaceCallTimeout  time.Duration
	DefaultVoice      string
	// EnvCredentials is the process-environment fallback for telephony credentials.
	EnvCredentials telephony.Credentials
}

type Deps struct {
	Calls         Repository
	Organizations OrganizationRepository
	Credentials   SettingsSource
	NewGateway    GatewayFactory
	Pricing       pricing.FlatRate
	Publisher     EventPublisher
	Metrics       MetricsSink
	Logger        *slog.Logger
	Clock         func() time.Time
	NewID         func() string
}

// Orchestrator places outbound AI calls and reconciles their lifecycle from
// gateway status callbacks. It is safe for concurrent use.
type Orchestrator struct {
	calls     Repository
	orgs      OrganizationRepository
	handle    *gatewayHandle
	pricing   pricing.FlatRate
	publisher EventPublisher
	metrics   MetricsSink
	log       *slog.Logger
	clock     func() time.Time
	newID     func() string
	cfg       Settings
}

func NewOrchestrator(deps Deps, cfg Settings) *Orchestrator {
	if deps.NewGateway == nil {
		deps.NewGateway = NewTwilioGatewayFactory("", nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}
	if cfg.PlaceCallTimeout <= 0 {
		cfg.PlaceCallTimeout = defaultPlaceCallTimeout
	}
	return &Orchestrator{
		calls: deps.Calls,
		orgs:  deps.Organizations,
		handle: &gatewayHandle{
			settings: deps.Credentials,
			env:      cfg.EnvCredentials,
			factory:  deps.NewGateway,
		},
		pricing:   deps.Pricing,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		log:       deps.Logger.With("component", "calls"),
		clock:     deps.Clock,
		newID:     deps.NewID,
		cfg:       cfg,
	}
}

// Reinitialize drops the memoized gateway and the telephony credential cache.
// Operations that already loaded a gateway finish with it.
func (o *Orchestrator) Reinitialize() {
	o.handle.reset()
	o.log.Info("telephony credentials reset")
}

// WebhookAuthToken returns the auth token of the active credentials, or "" when none resolve.
func (o *Orchestrator) WebhookAuthToken(ctx context.Context) (string, error) {
	rg, err := o.handle.load(ctx)
	if err != nil {
		return "", err
	}
	return rg.creds.AuthToken, nil
}

// InitiateCall validates opts, asks the gateway to place the call with an
// audio stream back to this service, and records the call once accepted.
// No row is written unless the gateway returned a call reference.
func (o *Orchestrator) InitiateCall(ctx context.Context, opts CallOptions) InitiateResult {
	to := strings.TrimSpace(opts.To)
	if !telephony.IsE164(to) {
		return o.fail(KindValidation, telephony.ErrInvalidPhoneNumber.Error())
	}

	if opts.OrganizationID != "" {
		if o.orgs == nil {
			return o.fail(KindNotFound, "Organization not found")
		}
		if _, err := o.orgs.GetOrganization(ctx, opts.OrganizationID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return o.fail(KindNotFound, "Organization not found")
			}
			o.log.Error("organization lookup failed", "organization_id", opts.OrganizationID, "err", err)
			return o.fail(KindInternal, "organization lookup failed")
		}
	}

	rg, err := o.handle.load(ctx)
	if err != nil {
		o.log.Error("telephony credential resolution failed", "err", err)
		return o.fail(KindInternal, "telephony credentials could not be loaded")
	}
	if rg.source == SourceNone {
		return o.fail(KindConfiguration, "Telephony credentials are not configured")
	}
	if o.cfg.AIAPIKey == "" {
		return o.fail(KindConfiguration, "AI backend API key is not configured")
	}

	callID := o.newID()
	twiml, err := telephony.RenderStreamTwiML(o.cfg.MediaStreamURL, telephony.StreamParameter{Name: "callId", Value: callID})
	if err != nil {
		return o.fail(KindConfiguration, fmt.Sprintf("media stream url: %v", err))
	}

	placeCtx, cancel := context.WithTimeout(ctx, o.cfg.PlaceCallTimeout)
	defer cancel()
	placed, err := rg.gateway.PlaceCall(placeCtx, telephony.PlaceCallRequest{
		To:                   to,
		From:                 rg.creds.PhoneNumber,
		TwiML:                twiml,
		StatusCallback:       o.cfg.StatusCallbackURL,
		StatusCallbackEvents: []string{"initiated", "ringing", "answered", "completed"},
		Record:               true,
	})
	if err != nil {
		if errors.Is(placeCtx.Err(), context.DeadlineExceeded) {
			o.log.Warn("call placement timed out", "call_id", callID, "timeout", o.cfg.PlaceCallTimeout)
			return o.fail(KindTimeout, fmt.Sprintf("call placement timed out after %s", o.cfg.PlaceCallTimeout))
		}
		o.log.Warn("gateway rejected call", "call_id", callID, "err", err)
		return o.fail(KindGateway, err.Error())
	}
	if placed.SID == "" {
		return o.fail(KindGateway, "gateway accepted the call without a call reference")
	}

	now := o.clock()
	voice := opts.Voice
	if voice == "" {
		voice = o.cfg.DefaultVoice
	}
	call := Call{
		ID:             callID,
		OrganizationID: opts.OrganizationID,
		To:             to,
		From:           rg.creds.PhoneNumber,
		Status:         StatusInitiated,
		ExternalID:     placed.SID,
		Metadata: CallMetadata{
			SystemPrompt: opts.SystemPrompt,
			Voice:        voice,
			Greeting:     opts.Greeting,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	ev := o.event(callID, EventType(StatusInitiated), map[string]any{
		"to":               to,
		"from":             call.From,
		"externalCallId":   placed.SID,
		"gatewayStatus":    placed.Status,
		"credentialSource": rg.source,
	})
	if err := o.calls.CreateWithEvent(ctx, call, ev); err != nil {
		// The gateway already dialed; keep the reference in the log so the call can be traced.
		o.log.Error("call placed but record not saved", "call_id", callID, "external_call_id", placed.SID, "err", err)
		return o.fail(KindUnrecorded, "call placed but could not be recorded")
	}

	o.log.Info("call initiated", "call_id", callID, "external_call_id", placed.SID, "organization_id", opts.OrganizationID)
	o.observePlacement("success")
	o.publish(ctx, call, ev)
	return InitiateResult{Success: true, CallID: callID, ExternalCallID: placed.SID}
}

// AppendCallEvent records a non-status event, such as media stream lifecycle.
func (o *Orchestrator) AppendCallEvent(ctx context.Context, callID, typ string, payload any) error {
	ev := o.event(callID, typ, payload)
	return o.calls.AppendEvent(ctx, ev)
}

func (o *Orchestrator) GetCall(ctx context.Context, callID string) (Call, error) {
	return o.calls.GetByID(ctx, callID)
}

func (o *Orchestrator) GetCallDetails(ctx context.Context, callID string) (CallDetails, error) {
	c, err := o.calls.GetByID(ctx, callID)
	if err != nil {
		return CallDetails{}, err
	}
	out := CallDetails{Call: c}
	if c.OrganizationID != "" && o.orgs != nil {
		org, err := o.orgs.GetOrganization(ctx, c.OrganizationID)
		switch {
		case err == nil:
			out.Organization = &org
		case !errors.Is(err, ErrNotFound):
			return CallDetails{}, err
		}
	}
	return out, nil
}

// GetOrganizationCalls lists calls newest first. limit defaults to 20, capped at 100.
func (o *Orchestrator) GetOrganizationCalls(ctx context.Context, orgID string, limit, offset int) ([]Call, error) {
	if orgID == "" {
		return nil, ErrInvalidArgument
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return o.calls.ListByOrganization(ctx, orgID, limit, offset)
}

// GetCallEvents returns the call's history oldest first.
func (o *Orchestrator) GetCallEvents(ctx context.Context, callID string) ([]Event, error) {
	if _, err := o.calls.GetByID(ctx, callID); err != nil {
		return nil, err
	}
	return o.calls.ListEvents(ctx, callID)
}

func (o *Orchestrator) fail(kind ErrorKind, msg string) InitiateResult {
	o.observePlacement(string(kind))
	return InitiateResult{Success: false, Error: msg, Kind: kind}
}

func (o *Orchestrator) observePlacement(outcome string) {
	if o.metrics != nil {
		o.metrics.CallPlacement(outcome)
	}
}

func (o *Orchestrator) event(callID, typ string, payload any) Event {
	var raw json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	return Event{
		ID:        o.newID(),
		CallID:    callID,
		Type:      typ,
		Payload:   raw,
		CreatedAt: o.clock(),
	}
}

func (o *Orchestrator) publish(ctx context.Context, c Call, e Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishCallEvent(ctx, c, e); err != nil {
		o.log.Warn("call event publish failed", "call_id", c.ID, "event", e.Type, "err", err)
	}
}
