package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg), reg
}

func getCounterVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) && m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestNotificationAttempt(t *testing.T) {
	s, reg := newTestSink(t)
	s.NotificationAttempt("twilio-sms", true)
	s.NotificationAttempt("twilio-sms", true)
	s.NotificationAttempt("none", false)

	if v := getCounterVecValue(t, reg, "comms_notification_attempts_total", map[string]string{"provider": "twilio-sms", "success": "true"}); v != 2 {
		t.Fatalf("expected 2, got %v", v)
	}
	if v := getCounterVecValue(t, reg, "comms_notification_attempts_total", map[string]string{"provider": "none", "success": "false"}); v != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
}

func TestCallMetrics(t *testing.T) {
	s, reg := newTestSink(t)
	s.CallPlacement("success")
	s.CallTransition("initiated", "ringing")
	s.WebhookIgnored("terminal")
	s.WebhookIgnored("terminal")

	if v := getCounterVecValue(t, reg, "comms_call_transitions_total", map[string]string{"from": "initiated", "to": "ringing"}); v != 1 {
		t.Fatalf("expected 1 transition, got %v", v)
	}
	if v := getCounterVecValue(t, reg, "comms_call_webhooks_ignored_total", map[string]string{"reason": "terminal"}); v != 2 {
		t.Fatalf("expected 2 ignored, got %v", v)
	}
	if v := getCounterVecValue(t, reg, "comms_call_placements_total", map[string]string{"outcome": "success"}); v != 1 {
		t.Fatalf("expected 1 placement, got %v", v)
	}
}

func TestQueueMetrics(t *testing.T) {
	s, reg := newTestSink(t)
	s.JobEnqueued("voice-calls")
	s.JobCompleted("voice-calls", 20*time.Millisecond)
	s.JobFailed("voice-calls", true)

	if v := getCounterVecValue(t, reg, "comms_queue_jobs_failed_total", map[string]string{"queue": "voice-calls", "terminal": "true"}); v != 1 {
		t.Fatalf("expected 1 terminal failure, got %v", v)
	}
	if v := getCounterVecValue(t, reg, "comms_queue_jobs_completed_total", map[string]string{"queue": "voice-calls"}); v != 1 {
		t.Fatalf("expected 1 completion, got %v", v)
	}
}

func TestDoubleRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheusSink(reg)
	s := NewPrometheusSink(reg)
	s.JobEnqueued("email-sending")
}
