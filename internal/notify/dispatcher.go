package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const noProvider = "none"

var (
	ErrProviderNotFound      = errors.New("notify: provider not found")
	ErrProviderNotConfigured = errors.New("notify: provider not configured")
	ErrInvalidRecipient      = errors.New("notify: invalid recipient")
	ErrSendFailed            = errors.New("notify: send failed")
)

var (
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	loosePhone      = regexp.MustCompile(`^\+?\d{2,15}$`)
)

// AttemptRepository persists the notification attempt log.
type AttemptRepository interface {
	Append(ctx context.Context, a Attempt) error
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]Attempt, error)
	ListByProvider(ctx context.Context, provider string, limit int) ([]Attempt, error)
}

// MetricsSink is implemented by internal/metrics.PrometheusSink.
type MetricsSink interface {
	NotificationAttempt(provider string, success bool)
}

type DispatcherOptions struct {
	Metrics MetricsSink
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Dispatcher selects a provider, sends, and logs every attempt.
// Delivery is best-effort and at-most-once; callers needing guarantees retry themselves.
type Dispatcher struct {
	registry *Registry
	def      Provider
	attempts AttemptRepository
	metrics  MetricsSink
	log      *slog.Logger
	clock    func() time.Time
}

func NewDispatcher(registry *Registry, attempts AttemptRepository, opts DispatcherOptions) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	d := &Dispatcher{
		registry: registry,
		attempts: attempts,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		clock:    opts.Clock,
	}
	if p, ok := SelectDefault(registry.Providers()); ok {
		d.def = p
		d.log.Info("notification default provider selected", "provider", p.Name())
	} else {
		d.log.Warn("no notification provider configured; sends will fail")
	}
	return d
}

// DefaultProvider returns the default provider's name, or "" when none is configured.
func (d *Dispatcher) DefaultProvider() string {
	if d.def == nil {
		return ""
	}
	return d.def.Name()
}

// SendSMS sends p through the override provider when it exists and is configured,
// else through the default provider.
func (d *Dispatcher) SendSMS(ctx context.Context, p Params, override string) bool {
	to, ok := normalizeRecipient(p.To)
	if !ok || strings.TrimSpace(p.Message) == "" {
		d.log.Warn("notification rejected", "reason", "invalid recipient or empty message", "type", p.Type)
		return false
	}
	p.To = to
	if p.Type == "" {
		p.Type = TypeNotification
	}

	provider := d.def
	if override != "" {
		if op, found := d.registry.Lookup(override); found && op.IsConfigured() {
			provider = op
		} else {
			d.log.Warn("notification override unavailable; using default", "override", override, "default", d.DefaultProvider())
		}
	}

	if provider == nil {
		d.log.Error("notification not sent", "reason", "no provider configured", "type", p.Type)
		d.record(ctx, p, noProvider, Result{Error: "no provider configured"})
		return false
	}
	return d.sendWith(ctx, provider, p)
}

func (d *Dispatcher) SendVerificationSMS(ctx context.Context, to, code string) bool {
	return d.SendSMS(ctx, Params{To: to, Message: verificationMessage(code), Type: TypeVerification}, "")
}

func (d *Dispatcher) SendInterviewSMS(ctx context.Context, to string, in Interview) bool {
	return d.SendSMS(ctx, Params{To: to, Message: interviewMessage(in), Type: TypeInterview}, "")
}

func (d *Dispatcher) SendAlertSMS(ctx context.Context, to, message string) bool {
	return d.SendSMS(ctx, Params{To: to, Message: alertMessage(message), Type: TypeAlert}, "")
}

// TestProvider sends a timestamped test message through exactly the named provider.
func (d *Dispatcher) TestProvider(ctx context.Context, name, to string) error {
	p, ok := d.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	if !p.IsConfigured() {
		return fmt.Errorf("%w: %q", ErrProviderNotConfigured, p.Name())
	}
	normalized, ok := normalizeRecipient(to)
	if !ok {
		return ErrInvalidRecipient
	}
	params := Params{To: normalized, Message: testMessage(p.Name(), d.clock()), Type: TypeNotification}
	if !d.sendWith(ctx, p, params) {
		return fmt.Errorf("%w via %s", ErrSendFailed, p.Name())
	}
	return nil
}

func (d *Dispatcher) sendWith(ctx context.Context, provider Provider, p Params) bool {
	res, err := safeSend(ctx, provider, p)
	if err != nil {
		d.log.Error("notification send failed", "provider", provider.Name(), "type", p.Type, "err", err)
		res = Result{Error: err.Error()}
	} else if !res.Delivered {
		d.log.Warn("notification not delivered", "provider", provider.Name(), "type", p.Type, "error", res.Error)
	}
	d.record(ctx, p, provider.Name(), res)
	return res.Delivered
}

func safeSend(ctx context.Context, provider Provider, p Params) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return provider.Send(ctx, p)
}

// record is best-effort; a failing attempt log never changes the send outcome.
func (d *Dispatcher) record(ctx context.Context, p Params, provider string, res Result) {
	if d.metrics != nil {
		d.metrics.NotificationAttempt(provider, res.Delivered)
	}
	if d.attempts == nil {
		return
	}
	a := Attempt{
		ID:         uuid.NewString(),
		Recipient:  p.To,
		Message:    p.Message,
		Type:       p.Type,
		Provider:   provider,
		Success:    res.Delivered,
		Error:      res.Error,
		ExternalID: res.ExternalID,
		CreatedAt:  d.clock().UTC(),
	}
	if err := d.attempts.Append(ctx, a); err != nil {
		d.log.Error("notification attempt log failed", "provider", provider, "err", err)
	}
}

func normalizeRecipient(to string) (string, bool) {
	s := phoneSeparators.Replace(strings.TrimSpace(to))
	if s == "" || !loosePhone.MatchString(s) {
		return "", false
	}
	return s, true
}
