package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Handler executes one job. Returning nil acknowledges it; any error goes
// through the queue's retry policy. Wrap with Permanent to skip retries.
type Handler func(ctx context.Context, job *Job) error

type WorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
	// JobTimeout bounds a single attempt. In-flight attempts are not cancelled on shutdown.
	JobTimeout time.Duration
	// Jobs reserved longer than StalledAfter ago are failed by the recovery
	// sweep, which runs on start and every RecoverInterval.
	StalledAfter    time.Duration
	RecoverInterval time.Duration
	Logger          *slog.Logger
}

// Worker pulls jobs from one queue with bounded concurrency.
type Worker struct {
	q       *Queue
	handle  Handler
	conc    int
	poll    time.Duration
	timeout time.Duration
	stalled time.Duration
	sweep   time.Duration
	log     *slog.Logger
}

func NewWorker(q *Queue, h Handler, opts WorkerOptions) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	if opts.StalledAfter <= 0 {
		opts.StalledAfter = opts.JobTimeout + time.Minute
	}
	if opts.RecoverInterval <= 0 {
		opts.RecoverInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Worker{
		q:       q,
		handle:  h,
		conc:    opts.Concurrency,
		poll:    opts.PollInterval,
		timeout: opts.JobTimeout,
		stalled: opts.StalledAfter,
		sweep:   opts.RecoverInterval,
		log:     opts.Logger.With("queue", q.Name(), "component", "worker"),
	}
}

// Run blocks until ctx is done, then waits for in-flight jobs to drain.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started", "concurrency", w.conc)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.recoverLoop(ctx)
	}()
	for i := 0; i < w.conc; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if errors.Is(err, ErrClosed) {
			return
		}
		if err != nil {
			w.log.Error("reserve failed", "err", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

func (w *Worker) recoverLoop(ctx context.Context) {
	t := time.NewTicker(w.sweep)
	defer t.Stop()
	for {
		w.RecoverStalled(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RecoverStalled runs one recovery sweep over the worker's queue.
func (w *Worker) RecoverStalled(ctx context.Context) int {
	n, err := w.q.RecoverStalled(ctx, w.stalled)
	switch {
	case err != nil && ctx.Err() == nil && !errors.Is(err, ErrClosed):
		w.log.Error("stalled job recovery failed", "err", err)
	case n > 0:
		w.log.Warn("stalled jobs recovered", "count", n, "stalled_after", w.stalled)
	}
	return n
}

// ProcessNext reserves and handles at most one job. It reports whether a job was handled.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.q.Reserve(ctx)
	if err != nil || job == nil {
		return false, err
	}

	// Detached: shutdown does not cancel a running attempt.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	log := w.log.With("job_id", job.ID, "attempt", job.AttemptsMade+1)
	start := time.Now()
	herr := w.safeHandle(jobCtx, job)
	if herr == nil {
		if err := w.q.Complete(jobCtx, job); err != nil {
			log.Error("job ack failed", "err", err)
			return true, nil
		}
		log.Info("job completed", "duration", time.Since(start))
		return true, nil
	}

	log.Warn("job attempt failed", "err", herr)
	if _, err := w.q.Fail(jobCtx, job, herr); err != nil {
		log.Error("job failure bookkeeping failed", "err", err)
	}
	return true, nil
}

func (w *Worker) safeHandle(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panic", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handle(ctx, job)
}
