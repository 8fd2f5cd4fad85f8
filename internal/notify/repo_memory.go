package notify

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory AttemptRepository useful for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	attempts []Attempt
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, a Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *MemoryRepo) ListByRecipient(ctx context.Context, recipient string, limit int) ([]Attempt, error) {
	return r.filter(func(a Attempt) bool { return a.Recipient == recipient }, limit), nil
}

func (r *MemoryRepo) ListByProvider(ctx context.Context, provider string, limit int) ([]Attempt, error) {
	return r.filter(func(a Attempt) bool { return a.Provider == provider }, limit), nil
}

// Attempts returns every stored attempt in insertion order.
func (r *MemoryRepo) Attempts() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// filter returns newest first, matching the Postgres ordering.
func (r *MemoryRepo) filter(keep func(Attempt) bool, limit int) []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Attempt
	for i := len(r.attempts) - 1; i >= 0; i-- {
		if keep(r.attempts[i]) {
			out = append(out, r.attempts[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}
