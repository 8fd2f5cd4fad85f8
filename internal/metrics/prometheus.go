package metrics

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements the notify, calls and queue metric hooks.
// All methods are non-blocking. Registration errors are logged, never propagated.
type PrometheusSink struct {
	notificationAttempts *prometheus.CounterVec

	callPlacements  *prometheus.CounterVec
	callTransitions *prometheus.CounterVec
	webhooksIgnored *prometheus.CounterVec

	jobsEnqueued  *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	jobsFailed    *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initNotificationMetrics(reg)
	s.initCallMetrics(reg)
	s.initQueueMetrics(reg)
	return s
}

func (s *PrometheusSink) initNotificationMetrics(reg prometheus.Registerer) {
	s.notificationAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_notification_attempts_total",
		Help: "Notification send attempts by provider and outcome.",
	}, []string{"provider", "success"})
	s.register(reg, s.notificationAttempts, "comms_notification_attempts_total")
}

func (s *PrometheusSink) initCallMetrics(reg prometheus.Registerer) {
	s.callPlacements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_call_placements_total",
		Help: "Outbound call placement results by outcome.",
	}, []string{"outcome"})
	s.callTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_call_transitions_total",
		Help: "Applied voice call status transitions.",
	}, []string{"from", "to"})
	s.webhooksIgnored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_call_webhooks_ignored_total",
		Help: "Status callbacks that were logged but not applied.",
	}, []string{"reason"})

	s.register(reg, s.callPlacements, "comms_call_placements_total")
	s.register(reg, s.callTransitions, "comms_call_transitions_total")
	s.register(reg, s.webhooksIgnored, "comms_call_webhooks_ignored_total")
}

func (s *PrometheusSink) initQueueMetrics(reg prometheus.Registerer) {
	s.jobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_queue_jobs_enqueued_total",
		Help: "Jobs enqueued per queue.",
	}, []string{"queue"})
	s.jobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_queue_jobs_completed_total",
		Help: "Jobs handled successfully per queue.",
	}, []string{"queue"})
	s.jobsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_queue_jobs_failed_total",
		Help: "Job failures per queue; terminal=true once attempts are exhausted.",
	}, []string{"queue", "terminal"})
	s.jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comms_queue_job_duration_seconds",
		Help:    "Handler execution time per queue.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"queue"})

	s.register(reg, s.jobsEnqueued, "comms_queue_jobs_enqueued_total")
	s.register(reg, s.jobsCompleted, "comms_queue_jobs_completed_total")
	s.register(reg, s.jobsFailed, "comms_queue_jobs_failed_total")
	s.register(reg, s.jobDuration, "comms_queue_job_duration_seconds")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		slog.Warn("metrics: register failed", "metric", name, "err", err)
	}
}

func (s *PrometheusSink) NotificationAttempt(provider string, success bool) {
	s.notificationAttempts.WithLabelValues(provider, strconv.FormatBool(success)).Inc()
}

func (s *PrometheusSink) CallPlacement(outcome string) {
	s.callPlacements.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) CallTransition(from, to string) {
	s.callTransitions.WithLabelValues(from, to).Inc()
}

func (s *PrometheusSink) WebhookIgnored(reason string) {
	s.webhooksIgnored.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) JobEnqueued(queue string) {
	s.jobsEnqueued.WithLabelValues(queue).Inc()
}

func (s *PrometheusSink) JobCompleted(queue string, d time.Duration) {
	s.jobsCompleted.WithLabelValues(queue).Inc()
	s.jobDuration.WithLabelValues(queue).Observe(d.Seconds())
}

func (s *PrometheusSink) JobFailed(queue string, terminal bool) {
	s.jobsFailed.WithLabelValues(queue, strconv.FormatBool(terminal)).Inc()
}
