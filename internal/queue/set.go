package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Set is the five named queues sharing one broker connection.
type Set struct {
	client redis.UniversalClient
	queues map[string]*Queue
	log    *slog.Logger
}

type SetOptions struct {
	Prefix  string
	Metrics MetricsSink
	Logger  *slog.Logger
	Clock   func() time.Time
}

func NewSet(client redis.UniversalClient, opts SetOptions) *Set {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Set{client: client, queues: make(map[string]*Queue, len(Names)), log: opts.Logger}
	for _, name := range Names {
		s.queues[name] = New(client, name, Options{
			Prefix:   opts.Prefix,
			Defaults: DefaultOptions(name),
			Metrics:  opts.Metrics,
			Logger:   opts.Logger,
			Clock:    opts.Clock,
			// A stalled placement may already have dialed the candidate.
			StalledIsFinal: name == VoiceCalls,
		})
	}
	return s
}

// Queue returns the queue with the given name.
func (s *Set) Queue(name string) (*Queue, error) {
	q, ok := s.queues[name]
	if !ok {
		return nil, fmt.Errorf("queue: unknown queue %q", name)
	}
	return q, nil
}

func (s *Set) ResumeProcessing() *Queue   { return s.queues[ResumeProcessing] }
func (s *Set) EmailSending() *Queue       { return s.queues[EmailSending] }
func (s *Set) CandidateMatching() *Queue  { return s.queues[CandidateMatching] }
func (s *Set) VoiceCalls() *Queue         { return s.queues[VoiceCalls] }
func (s *Set) InterviewReminders() *Queue { return s.queues[InterviewReminders] }

// Stats reports every queue in declaration order.
func (s *Set) Stats(ctx context.Context) ([]Stats, error) {
	out := make([]Stats, 0, len(Names))
	for _, name := range Names {
		st, err := s.queues[name].Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// Close closes every queue concurrently and only then the broker connection,
// so in-flight acknowledgements are not cut off.
func (s *Set) Close() error {
	var wg sync.WaitGroup
	for _, q := range s.queues {
		wg.Add(1)
		go func(q *Queue) {
			defer wg.Done()
			q.Close()
		}(q)
	}
	wg.Wait()
	s.log.Info("queues closed; closing broker connection")
	return s.client.Close()
}
