package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrClosed         = errors.New("queue: closed")
	ErrInvalidPayload = errors.New("queue: payload is not serializable")
	ErrJobNotFound    = errors.New("queue: job not found")
	ErrStalled        = errors.New("queue: job stalled in active")
)

const promoteBatch = 100

// MetricsSink is implemented by internal/metrics.PrometheusSink.
type MetricsSink interface {
	JobEnqueued(queue string)
	JobCompleted(queue string, d time.Duration)
	JobFailed(queue string, terminal bool)
}

type Options struct {
	Prefix   string
	Defaults JobOptions
	Metrics  MetricsSink
	Logger   *slog.Logger
	Clock    func() time.Time
	// StalledIsFinal fails recovered stalled jobs terminally instead of
	// retrying them.
	StalledIsFinal bool
}

// Queue is one named durable job channel stored in Redis.
//
// Keys, for prefix p and name n:
//
//	p:n:wait       list of ready job ids
//	p:n:active     list of reserved job ids
//	p:n:leases     zset of reserved job ids scored by reservation time (ms)
//	p:n:delayed    zset of job ids scored by ready time (ms)
//	p:n:completed  bounded list of finished ids
//	p:n:failed     bounded list of exhausted ids
//	p:n:job:<id>   job JSON
type Queue struct {
	name     string
	rdb      redis.Cmdable
	prefix   string
	defaults JobOptions
	metrics  MetricsSink
	log      *slog.Logger
	clock    func() time.Time
	// stalledFinal mirrors Options.StalledIsFinal.
	stalledFinal bool

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func New(rdb redis.Cmdable, name string, opts Options) *Queue {
	if opts.Prefix == "" {
		opts.Prefix = "comms"
	}
	if opts.Defaults.Attempts <= 0 {
		opts.Defaults = DefaultOptions(name)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Queue{
		name:     name,
		rdb:      rdb,
		prefix:   opts.Prefix,
		defaults: opts.Defaults,
		metrics:  opts.Metrics,
		log:      opts.Logger.With("queue", name),
		clock:    opts.Clock,

		stalledFinal: opts.StalledIsFinal,
	}
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) Defaults() JobOptions { return q.defaults }

func (q *Queue) key(part string) string {
	return q.prefix + ":" + q.name + ":" + part
}

func (q *Queue) jobKey(id string) string {
	return q.key("job:" + id)
}

// begin registers an in-flight broker operation; Close waits for all of them.
func (q *Queue) begin() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.inflight.Add(1)
	return nil
}

// Enqueue stores payload as a new job. override may be nil.
func (q *Queue) Enqueue(ctx context.Context, payload any, override *JobOptions) (*Job, error) {
	if err := q.begin(); err != nil {
		return nil, err
	}
	defer q.inflight.Done()

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	opts := q.defaults.merge(override)
	id := opts.JobID
	if id == "" {
		id = uuid.NewString()
	}

	now := q.clock()
	job := &Job{
		ID:        id,
		Queue:     q.name,
		Payload:   raw,
		Options:   opts,
		Status:    StatusWaiting,
		CreatedAt: now.UTC(),
	}
	if opts.Delay > 0 {
		job.Status = StatusDelayed
	}
	body, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	readyAt := int64(0)
	if opts.Delay > 0 {
		readyAt = now.Add(opts.Delay).UnixMilli()
	}
	created, err := enqueueScript.Run(ctx, q.rdb,
		[]string{q.jobKey(id), q.key("wait"), q.key("delayed")},
		id, body, readyAt,
	).Int()
	if err != nil {
		return nil, err
	}
	if created == 0 {
		// A caller-supplied JobID that already exists is deduplicated.
		return q.Get(ctx, id)
	}

	if q.metrics != nil {
		q.metrics.JobEnqueued(q.name)
	}
	q.log.Debug("job enqueued", "job_id", id, "delay", opts.Delay)
	return job, nil
}

// Get loads a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	raw, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &j, nil
}

// Reserve promotes due delayed jobs and moves the oldest waiting job to active.
// It returns (nil, nil) when nothing is ready.
func (q *Queue) Reserve(ctx context.Context) (*Job, error) {
	if err := q.begin(); err != nil {
		return nil, err
	}
	defer q.inflight.Done()

	now := q.clock()
	if err := promoteScript.Run(ctx, q.rdb,
		[]string{q.key("delayed"), q.key("wait")},
		now.UnixMilli(), promoteBatch,
	).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("promote delayed: %w", err)
	}

	for {
		id, err := reserveScript.Run(ctx, q.rdb,
			[]string{q.key("wait"), q.key("active"), q.key("leases")},
			now.UnixMilli(),
		).Text()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		job, err := q.Get(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			// Body trimmed or deleted underneath us.
			q.rdb.LRem(ctx, q.key("active"), 1, id)
			q.rdb.ZRem(ctx, q.key("leases"), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		processed := now.UTC()
		job.Status = StatusActive
		job.ProcessedAt = &processed
		if err := q.save(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
}

// Complete acknowledges a job handled successfully.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	if err := q.begin(); err != nil {
		return err
	}
	defer q.inflight.Done()

	finished := q.clock().UTC()
	job.AttemptsMade++
	job.Status = StatusCompleted
	job.LastError = ""
	job.FinishedAt = &finished
	if err := q.finish(ctx, job, "completed", job.Options.RemoveOnComplete); err != nil {
		return err
	}
	if q.metrics != nil && job.ProcessedAt != nil {
		q.metrics.JobCompleted(q.name, finished.Sub(*job.ProcessedAt))
	}
	return nil
}

// Fail records a failed attempt. The job is retried after its backoff unless
// attempts are exhausted or cause is Permanent, in which case it moves to the
// bounded failed list and terminal is true.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) (terminal bool, err error) {
	if err := q.begin(); err != nil {
		return false, err
	}
	defer q.inflight.Done()

	now := q.clock()
	job.AttemptsMade++
	if cause != nil {
		job.LastError = cause.Error()
	}

	terminal = IsPermanent(cause) || job.AttemptsMade >= job.Options.Attempts
	if terminal {
		finished := now.UTC()
		job.Status = StatusFailed
		job.FinishedAt = &finished
		err = q.finish(ctx, job, "failed", job.Options.RemoveOnFail)
	} else {
		delay := retryDelay(job.Options.Backoff, job.AttemptsMade)
		job.Status = StatusDelayed
		var body []byte
		if body, err = json.Marshal(job); err == nil {
			err = retryScript.Run(ctx, q.rdb,
				[]string{q.key("active"), q.key("delayed"), q.jobKey(job.ID), q.key("leases")},
				job.ID, now.Add(delay).UnixMilli(), body,
			).Err()
		}
		q.log.Info("job retry scheduled", "job_id", job.ID, "attempt", job.AttemptsMade, "delay", delay, "err", job.LastError)
	}
	if err != nil {
		return terminal, err
	}
	if q.metrics != nil {
		q.metrics.JobFailed(q.name, terminal)
	}
	if terminal {
		q.log.Warn("job failed permanently", "job_id", job.ID, "attempts", job.AttemptsMade, "err", job.LastError)
	}
	return terminal, nil
}

func (q *Queue) finish(ctx context.Context, job *Job, list string, keep int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return finishScript.Run(ctx, q.rdb,
		[]string{q.key("active"), q.key(list), q.key("leases")},
		job.ID, strconv.Itoa(keep), q.key("job:"), body,
	).Err()
}

// RecoverStalled fails every job reserved longer than olderThan ago, as
// happens when a worker dies mid-attempt. Each one counts as a failed attempt
// and follows the retry policy, or fails terminally when the queue was built
// with StalledIsFinal. It returns the number of jobs recovered.
func (q *Queue) RecoverStalled(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := q.clock().Add(-olderThan).UnixMilli()
	ids, err := q.rdb.ZRangeByScore(ctx, q.key("leases"), &redis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(cutoff, 10), Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, id := range ids {
		// Removing the lease claims the job; a concurrent recoverer skips it.
		n, err := q.rdb.ZRem(ctx, q.key("leases"), id).Result()
		if err != nil {
			return recovered, err
		}
		if n == 0 {
			continue
		}
		job, err := q.Get(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			q.rdb.LRem(ctx, q.key("active"), 1, id)
			continue
		}
		if err != nil {
			return recovered, err
		}
		var cause error = ErrStalled
		if q.stalledFinal {
			cause = Permanent(ErrStalled)
		}
		if _, err := q.Fail(ctx, job, cause); err != nil {
			return recovered, err
		}
		q.log.Warn("stalled job recovered", "job_id", id, "attempts", job.AttemptsMade)
		recovered++
	}
	return recovered, nil
}

func (q *Queue) save(ctx context.Context, job *Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.Set(ctx, q.jobKey(job.ID), body, 0).Err()
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.rdb.Pipeline()
	wait := pipe.LLen(ctx, q.key("wait"))
	active := pipe.LLen(ctx, q.key("active"))
	delayed := pipe.ZCard(ctx, q.key("delayed"))
	completed := pipe.LLen(ctx, q.key("completed"))
	failed := pipe.LLen(ctx, q.key("failed"))
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, err
	}
	return Stats{
		Queue:     q.name,
		Waiting:   wait.Val(),
		Active:    active.Val(),
		Delayed:   delayed.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// Close rejects new operations and waits for in-flight ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.inflight.Wait()
}
