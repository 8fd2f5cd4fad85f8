package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeProvider struct {
	name       string
	configured bool
	result     Result
	err        error
	panicMsg   string
	sent       []Params
}

func (f *fakeProvider) Name() string       { return f.name }
func (f *fakeProvider) IsConfigured() bool { return f.configured }
func (f *fakeProvider) Send(ctx context.Context, p Params) (Result, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.sent = append(f.sent, p)
	return f.result, f.err
}

type countingSink struct{ calls map[string]int }

func (s *countingSink) NotificationAttempt(provider string, success bool) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[provider]++
}

func delivered(id string) Result { return Result{Delivered: true, ExternalID: id} }

func TestSelectDefault_FirstConfiguredWins(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b", configured: true}
	c := &fakeProvider{name: "c", configured: true}

	p, ok := SelectDefault([]Provider{a, b, c})
	if !ok || p.Name() != "b" {
		t.Fatalf("expected b, got %v", p)
	}
	if _, ok := SelectDefault([]Provider{a}); ok {
		t.Fatalf("expected no default")
	}
}

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry(&fakeProvider{name: "Twilio-SMS"}, &fakeProvider{name: "twilio-sms"})
	if len(r.Providers()) != 1 {
		t.Fatalf("expected duplicate names collapsed")
	}
	if _, ok := r.Lookup(" TWILIO-sms "); !ok {
		t.Fatalf("expected lookup to match")
	}
}

func TestSendSMS_NoProvidersLogsOneFailedAttempt(t *testing.T) {
	repo := NewMemoryRepo()
	d := NewDispatcher(NewRegistry(&fakeProvider{name: "a"}), repo, DispatcherOptions{})

	if d.SendSMS(context.Background(), Params{To: "+15551234567", Message: "hi"}, "") {
		t.Fatalf("expected false")
	}
	attempts := repo.Attempts()
	if len(attempts) != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", len(attempts))
	}
	if attempts[0].Success || attempts[0].Provider != "none" || attempts[0].Error == "" {
		t.Fatalf("unexpected attempt: %+v", attempts[0])
	}
}

func TestSendSMS_InvalidInputInvokesNoProvider(t *testing.T) {
	p := &fakeProvider{name: "a", configured: true, result: delivered("x")}
	repo := NewMemoryRepo()
	d := NewDispatcher(NewRegistry(p), repo, DispatcherOptions{})

	cases := []Params{
		{To: "", Message: "hi"},
		{To: "+15551234567", Message: "  "},
		{To: "abc", Message: "hi"},
		{To: "+1", Message: "hi"},
		{To: "+1234567890123456", Message: "hi"},
	}
	for _, c := range cases {
		if d.SendSMS(context.Background(), c, "") {
			t.Fatalf("expected rejection for %+v", c)
		}
	}
	if len(p.sent) != 0 {
		t.Fatalf("expected provider not invoked")
	}
	if len(repo.Attempts()) != 0 {
		t.Fatalf("expected no attempts for rejected input")
	}
}

func TestSendSMS_StripsSeparators(t *testing.T) {
	p := &fakeProvider{name: "a", configured: true, result: delivered("x")}
	d := NewDispatcher(NewRegistry(p), NewMemoryRepo(), DispatcherOptions{})

	if !d.SendSMS(context.Background(), Params{To: "+1 (555) 123-4567", Message: "hi"}, "") {
		t.Fatalf("expected delivery")
	}
	if p.sent[0].To != "+15551234567" {
		t.Fatalf("unexpected normalized recipient %q", p.sent[0].To)
	}
	if p.sent[0].Type != TypeNotification {
		t.Fatalf("expected default type notification, got %q", p.sent[0].Type)
	}
}

func TestSendSMS_OverrideUnconfiguredFallsBack(t *testing.T) {
	def := &fakeProvider{name: "primary", configured: true, result: delivered("SM1")}
	other := &fakeProvider{name: "secondary"}
	repo := NewMemoryRepo()
	d := NewDispatcher(NewRegistry(def, other), repo, DispatcherOptions{})

	if !d.SendSMS(context.Background(), Params{To: "+15551234567", Message: "hi"}, "secondary") {
		t.Fatalf("expected delivery through default")
	}
	if len(def.sent) != 1 || len(other.sent) != 0 {
		t.Fatalf("expected default provider used")
	}
	a := repo.Attempts()
	if len(a) != 1 || a[0].Provider != "primary" || a[0].ExternalID != "SM1" {
		t.Fatalf("expected attempt logged against provider used: %+v", a)
	}

	if !d.SendSMS(context.Background(), Params{To: "+15551234567", Message: "hi"}, "missing") {
		t.Fatalf("expected unknown override to fall back")
	}
}

func TestSendSMS_OverrideConfiguredIsUsed(t *testing.T) {
	def := &fakeProvider{name: "primary", configured: true, result: delivered("1")}
	other := &fakeProvider{name: "secondary", configured: true, result: delivered("2")}
	d := NewDispatcher(NewRegistry(def, other), NewMemoryRepo(), DispatcherOptions{})

	if !d.SendSMS(context.Background(), Params{To: "+15551234567", Message: "hi"}, "SECONDARY") {
		t.Fatalf("expected delivery")
	}
	if len(other.sent) != 1 || len(def.sent) != 0 {
		t.Fatalf("expected override provider used")
	}
}

func TestSendSMS_ProviderErrorAndPanicBecomeFalse(t *testing.T) {
	repo := NewMemoryRepo()
	sink := &countingSink{}
	failing := &fakeProvider{name: "failing", configured: true, err: errors.New("connection reset")}
	d := NewDispatcher(NewRegistry(failing), repo, DispatcherOptions{Metrics: sink})

	if d.SendSMS(context.Background(), Params{To: "+15551234567", Message: "hi"}, "") {
		t.Fatalf("expected false on provider error")
	}

	panicky := &fakeProvider{name: "panicky", configured: true, panicMsg: "boom"}
	d2 := NewDispatcher(NewRegistry(panicky), repo, DispatcherOptions{Metrics: sink})
	if d2.SendSMS(context.Background(), Params{To: "+15551234567", Message: "hi"}, "") {
		t.Fatalf("expected false on provider panic")
	}

	a := repo.Attempts()
	if len(a) != 2 || a[0].Error != "connection reset" || !strings.Contains(a[1].Error, "boom") {
		t.Fatalf("unexpected attempts: %+v", a)
	}
	if sink.calls["failing"] != 1 || sink.calls["panicky"] != 1 {
		t.Fatalf("expected metrics per attempt, got %v", sink.calls)
	}
}

func TestConvenienceWrappers(t *testing.T) {
	p := &fakeProvider{name: "a", configured: true, result: delivered("x")}
	repo := NewMemoryRepo()
	d := NewDispatcher(NewRegistry(p), repo, DispatcherOptions{})
	ctx := context.Background()

	d.SendVerificationSMS(ctx, "+15551234567", "123456")
	d.SendInterviewSMS(ctx, "+15551234567", Interview{
		CandidateName: "Sam",
		JobTitle:      "Backend Engineer",
		At:            time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC),
		Location:      "Room 4",
	})
	d.SendAlertSMS(ctx, "+15551234567", "disk full")

	a := repo.Attempts()
	if len(a) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(a))
	}
	if a[0].Type != TypeVerification || !strings.Contains(a[0].Message, "123456") {
		t.Fatalf("unexpected verification attempt: %+v", a[0])
	}
	if a[1].Type != TypeInterview || !strings.Contains(a[1].Message, "Mon Mar 2, 2026 at 3:04 PM UTC") || !strings.HasSuffix(a[1].Message, "Location: Room 4") {
		t.Fatalf("unexpected interview attempt: %+v", a[1])
	}
	if a[2].Type != TypeAlert || a[2].Message != "[Alert] disk full" {
		t.Fatalf("unexpected alert attempt: %+v", a[2])
	}
}

func TestTestProvider(t *testing.T) {
	def := &fakeProvider{name: "primary", configured: true, result: delivered("1")}
	other := &fakeProvider{name: "secondary", configured: true, result: delivered("2")}
	off := &fakeProvider{name: "off"}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDispatcher(NewRegistry(def, other, off), NewMemoryRepo(), DispatcherOptions{Clock: func() time.Time { return now }})
	ctx := context.Background()

	if err := d.TestProvider(ctx, "Secondary", "+15551234567"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(other.sent) != 1 || len(def.sent) != 0 {
		t.Fatalf("expected exactly the named provider used")
	}
	if other.sent[0].Message != "Test message from secondary at 2026-01-01T00:00:00Z" {
		t.Fatalf("unexpected test message %q", other.sent[0].Message)
	}

	if err := d.TestProvider(ctx, "nope", "+15551234567"); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
	if err := d.TestProvider(ctx, "off", "+15551234567"); !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}

	other.result = Result{Error: "rejected"}
	if err := d.TestProvider(ctx, "secondary", "+15551234567"); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

func TestMemoryRepo_ListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Append(ctx, Attempt{ID: "1", Recipient: "+1555", Provider: "a"})
	_ = repo.Append(ctx, Attempt{ID: "2", Recipient: "+1555", Provider: "b"})
	_ = repo.Append(ctx, Attempt{ID: "3", Recipient: "+1666", Provider: "a"})

	got, _ := repo.ListByRecipient(ctx, "+1555", 10)
	if len(got) != 2 || got[0].ID != "2" {
		t.Fatalf("unexpected recipient listing %+v", got)
	}
	got, _ = repo.ListByProvider(ctx, "a", 1)
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("unexpected provider listing %+v", got)
	}
}
