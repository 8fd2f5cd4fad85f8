package credentials

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
// It counts reads so cache behavior can be asserted.
type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]Entry
	reads int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Entry)}
}

func (r *MemoryRepo) Get(ctx context.Context, category, key string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	e, ok := r.rows[cacheKey(category, key)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[cacheKey(e.Category, e.Key)] = e
	return nil
}

// Raw returns the stored row without decryption.
func (r *MemoryRepo) Raw(category, key string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[cacheKey(category, key)]
	return e, ok
}

func (r *MemoryRepo) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}
