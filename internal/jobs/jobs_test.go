package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/resend/resend-go/v2"

	"recruit-comms/internal/calls"
	"recruit-comms/internal/notify"
	"recruit-comms/internal/queue"
	"recruit-comms/internal/telephony"
	"recruit-comms/pkg/utils"
)

type fakePlacer struct {
	result calls.InitiateResult
	got    []calls.CallOptions
	during func()
}

func (f *fakePlacer) InitiateCall(ctx context.Context, opts calls.CallOptions) calls.InitiateResult {
	f.got = append(f.got, opts)
	if f.during != nil {
		f.during()
	}
	return f.result
}

type fakeSMS struct {
	ok  bool
	got []notify.Interview
}

func (f *fakeSMS) SendInterviewSMS(ctx context.Context, to string, in notify.Interview) bool {
	f.got = append(f.got, in)
	return f.ok
}

type fakeEmail struct {
	err error
	got []*resend.SendEmailRequest
}

func (f *fakeEmail) SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = append(f.got, params)
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "em_1"}, nil
}

func jobWith(t *testing.T, payload any) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &queue.Job{ID: "job-1", Payload: raw}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestVoiceCall_PermanentVersusRetryable(t *testing.T) {
	cases := []struct {
		kind      calls.ErrorKind
		permanent bool
	}{
		{calls.KindValidation, true},
		{calls.KindNotFound, true},
		{calls.KindConfiguration, true},
		{calls.KindGateway, false},
		{calls.KindInternal, false},
		{calls.KindTimeout, true},
		{calls.KindUnrecorded, true},
	}
	for _, c := range cases {
		p := &fakePlacer{result: calls.InitiateResult{Kind: c.kind, Error: "x"}}
		h := NewVoiceCallHandler(p, VoiceCallOptions{})
		err := h.Handle(context.Background(), jobWith(t, calls.CallOptions{To: "+15551234567"}))
		if err == nil {
			t.Fatalf("%s: expected error", c.kind)
		}
		if queue.IsPermanent(err) != c.permanent {
			t.Fatalf("%s: permanent=%v, want %v", c.kind, queue.IsPermanent(err), c.permanent)
		}
	}
}

type countingGateway struct {
	placed atomic.Int32
}

func (g *countingGateway) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	g.placed.Add(1)
	return telephony.PlaceCallResult{SID: "CA0001", Status: "queued"}, nil
}

func (g *countingGateway) FetchAccount(ctx context.Context) (telephony.Account, error) {
	return telephony.Account{}, nil
}

func (g *countingGateway) RecordingURL(ctx context.Context, callSID string) (string, error) {
	return "", nil
}

func TestVoiceCall_UnrecordedCallIsNotRedialed(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	repo := calls.NewMemoryRepo()
	repo.AddOrganization(calls.Organization{ID: "org-1", Name: "Acme Talent"})
	repo.FailCreate = errors.New("db down")
	gw := &countingGateway{}
	orch := calls.NewOrchestrator(calls.Deps{
		Calls:         repo,
		Organizations: repo,
		NewGateway:    func(telephony.Credentials) calls.Gateway { return gw },
	}, calls.Settings{
		AIAPIKey:       "sk-test",
		MediaStreamURL: "wss://voice.example.com/media-stream",
		EnvCredentials: telephony.Credentials{AccountSID: "AC0123456789abcdef0123456789abcdef", AuthToken: "tok", PhoneNumber: "+15550001111"},
	})

	q := queue.New(rdb, queue.VoiceCalls, queue.Options{Prefix: "test"})
	if _, err := q.Enqueue(ctx, calls.CallOptions{To: "+15551234567", OrganizationID: "org-1"}, &queue.JobOptions{Backoff: queue.Backoff{Type: "fixed", DelayMs: 1}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	w := queue.NewWorker(q, NewVoiceCallHandler(orch, VoiceCallOptions{Redis: rdb, OrgLimit: 2}).Handle, queue.WorkerOptions{})
	for i := 0; i < 4; i++ {
		if _, err := w.ProcessNext(ctx); err != nil {
			t.Fatalf("process: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if n := gw.placed.Load(); n != 1 {
		t.Fatalf("candidate dialed %d times", n)
	}
	st, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Failed != 1 || st.Delayed != 0 || st.Waiting != 0 {
		t.Fatalf("expected the job to fail terminally, got %+v", st)
	}
}

func TestVoiceCall_OrganizationCap(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	p := &fakePlacer{result: calls.InitiateResult{Success: true, CallID: "c1"}}
	h := NewVoiceCallHandler(p, VoiceCallOptions{Redis: rdb, OrgLimit: 1})

	// Hold the only slot from outside to simulate a placement in flight.
	slots, err := utils.NewSlotLimiter(rdb, 1, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	key := capKey("org-1")
	if ok, err := slots.Acquire(ctx, key, "outside"); err != nil || !ok {
		t.Fatalf("seed slot: %v %v", ok, err)
	}
	err = h.Handle(ctx, jobWith(t, calls.CallOptions{To: "+15551234567", OrganizationID: "org-1"}))
	if !errors.Is(err, ErrOrganizationAtCapacity) || queue.IsPermanent(err) {
		t.Fatalf("expected retryable capacity error, got %v", err)
	}
	if len(p.got) != 0 {
		t.Fatalf("call must not be placed over capacity")
	}

	if err := h.Handle(ctx, jobWith(t, calls.CallOptions{To: "+15551234567", OrganizationID: "org-2"})); err != nil {
		t.Fatalf("other organization should not be capped: %v", err)
	}

	if err := slots.Release(ctx, key, "outside"); err != nil {
		t.Fatalf("release: %v", err)
	}
	p.during = func() {
		if n, _ := slots.InUse(ctx, key); n != 1 {
			t.Errorf("slot should be held while the call is being placed, in use = %d", n)
		}
	}
	if err := h.Handle(ctx, jobWith(t, calls.CallOptions{To: "+15551234567", OrganizationID: "org-1"})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	p.during = nil
	if n, _ := slots.InUse(ctx, key); n != 0 {
		t.Fatalf("slot should be released after placement, in use = %d", n)
	}
}

func TestVoiceCall_BadPayloadIsPermanent(t *testing.T) {
	h := NewVoiceCallHandler(&fakePlacer{}, VoiceCallOptions{})
	err := h.Handle(context.Background(), &queue.Job{ID: "j", Payload: json.RawMessage(`{"to":`)})
	if !queue.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func reminder() ReminderPayload {
	return ReminderPayload{
		To:            "+15551234567",
		CandidateName: "Dana",
		JobTitle:      "Data Engineer",
		InterviewAt:   time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC),
		Location:      "Room 4",
	}
}

func TestReminder_SMS(t *testing.T) {
	sms := &fakeSMS{ok: true}
	h := NewReminderHandler(sms, nil, nil)
	if err := h.Handle(context.Background(), jobWith(t, reminder())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sms.got) != 1 || sms.got[0].CandidateName != "Dana" || sms.got[0].Location != "Room 4" {
		t.Fatalf("unexpected sms: %+v", sms.got)
	}

	sms.ok = false
	err := h.Handle(context.Background(), jobWith(t, reminder()))
	if !errors.Is(err, ErrReminderUndelivered) || queue.IsPermanent(err) {
		t.Fatalf("undelivered sms must be retried, got %v", err)
	}
}

func TestReminder_Call(t *testing.T) {
	p := &fakePlacer{result: calls.InitiateResult{Success: true, CallID: "c1"}}
	h := NewReminderHandler(&fakeSMS{}, NewVoiceCallHandler(p, VoiceCallOptions{}), nil)

	r := reminder()
	r.Channel = "call"
	r.Call = &calls.CallOptions{OrganizationID: "org-1", Voice: "verse"}
	if err := h.Handle(context.Background(), jobWith(t, r)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got := p.got[0]
	if got.To != r.To || got.OrganizationID != "org-1" || got.Voice != "verse" {
		t.Fatalf("unexpected call options: %+v", got)
	}
	if !strings.Contains(got.SystemPrompt, "Data Engineer") || !strings.Contains(got.SystemPrompt, "Room 4") || got.Greeting == "" {
		t.Fatalf("expected reminder prompt, got %+v", got)
	}
}

func TestReminder_InvalidIsPermanent(t *testing.T) {
	h := NewReminderHandler(&fakeSMS{ok: true}, nil, nil)
	r := reminder()
	r.Channel = "pigeon"
	if err := h.Handle(context.Background(), jobWith(t, r)); !queue.IsPermanent(err) || !errors.Is(err, ErrInvalidReminder) {
		t.Fatalf("expected permanent invalid reminder, got %v", err)
	}
	r = reminder()
	r.Channel = "call"
	if err := h.Handle(context.Background(), jobWith(t, r)); !queue.IsPermanent(err) {
		t.Fatalf("expected permanent error without voice handler, got %v", err)
	}
}

func TestEmail(t *testing.T) {
	client := &fakeEmail{}
	h := NewEmailHandler(client, "Recruiting <jobs@example.com>", nil)
	p := EmailPayload{To: []string{"dana@example.com"}, Subject: "Interview", HTML: "<p>See you</p>", Text: "See you"}

	if err := h.Handle(context.Background(), jobWith(t, p)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	req := client.got[0]
	if req.From != "Recruiting <jobs@example.com>" || req.Subject != "Interview" || req.Text != "See you" || len(req.To) != 1 {
		t.Fatalf("unexpected request: %+v", req)
	}

	client.err = errors.New("rate limited")
	if err := h.Handle(context.Background(), jobWith(t, p)); err == nil || queue.IsPermanent(err) {
		t.Fatalf("provider errors must be retried, got %v", err)
	}

	if err := h.Handle(context.Background(), jobWith(t, EmailPayload{To: []string{"nope"}, Subject: "s", HTML: "h"})); !queue.IsPermanent(err) {
		t.Fatalf("invalid payload must be permanent, got %v", err)
	}
	if err := NewResendEmailHandler("", "x@example.com", nil).Handle(context.Background(), jobWith(t, p)); !errors.Is(err, ErrEmailNotConfigured) {
		t.Fatalf("expected ErrEmailNotConfigured, got %v", err)
	}
}

func TestScheduleReminder_Delay(t *testing.T) {
	rdb := newRedis(t)
	q := queue.New(rdb, queue.InterviewReminders, queue.Options{Prefix: "test"})
	now := time.Now()

	job, err := ScheduleReminder(context.Background(), q, reminder(), now.Add(time.Hour), now)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if job.Status != queue.StatusDelayed {
		t.Fatalf("expected delayed job, got %s", job.Status)
	}
	if _, err := ScheduleReminder(context.Background(), q, ReminderPayload{}, now, now); !errors.Is(err, ErrInvalidReminder) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if d := delayUntil(now.Add(-time.Minute), now); d != 0 {
		t.Fatalf("past times must not delay, got %v", d)
	}
}

func TestHandlersMap(t *testing.T) {
	m := Handlers(NewVoiceCallHandler(&fakePlacer{}, VoiceCallOptions{}), nil, NewEmailHandler(nil, "", nil))
	if _, ok := m[queue.VoiceCalls]; !ok {
		t.Fatalf("voice handler missing")
	}
	if _, ok := m[queue.InterviewReminders]; ok {
		t.Fatalf("nil reminder handler must not be registered")
	}
	if len(m) != 2 {
		t.Fatalf("unexpected handlers: %d", len(m))
	}
}
