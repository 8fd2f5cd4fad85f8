package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo implements Repository and OrganizationRepository in memory.
type MemoryRepo struct {
	mu     sync.Mutex
	calls  map[string]Call
	byExt  map[string]string
	events map[string][]Event
	orgs   map[string]Organization

	// FailCreate, when set, is returned by CreateWithEvent.
	FailCreate error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		calls:  map[string]Call{},
		byExt:  map[string]string{},
		events: map[string][]Event{},
		orgs:   map[string]Organization{},
	}
}

func (r *MemoryRepo) AddOrganization(o Organization) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgs[o.ID] = o
}

func (r *MemoryRepo) GetOrganization(ctx context.Context, id string) (Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepo) CreateWithEvent(ctx context.Context, c Call, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return r.FailCreate
	}
	r.calls[c.ID] = c
	if c.ExternalID != "" {
		r.byExt[c.ExternalID] = c.ID
	}
	r.events[c.ID] = append(r.events[c.ID], e)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByExternalID(ctx context.Context, externalID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byExt[externalID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return r.calls[id], nil
}

func (r *MemoryRepo) ApplyTransition(ctx context.Context, callID string, from Status, u Update, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return ErrNotFound
	}
	if c.Status != from {
		return ErrStaleTransition
	}
	c.Status = u.Status
	if u.DurationSeconds != nil {
		c.DurationSeconds = *u.DurationSeconds
	}
	if u.CostCents != nil {
		c.CostCents = *u.CostCents
	}
	if u.RecordingURL != nil {
		c.RecordingURL = *u.RecordingURL
	}
	c.UpdatedAt = u.UpdatedAt
	r.calls[callID] = c
	r.events[callID] = append(r.events[callID], e)
	return nil
}

func (r *MemoryRepo) AppendEvent(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.CallID] = append(r.events[e.CallID], e)
	return nil
}

func (r *MemoryRepo) ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]Call, error) {
	r.mu.Lock()
	var out []Call
	for _, c := range r.calls {
		if c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListCreatedBetween(ctx context.Context, orgID string, from, to time.Time) ([]Call, error) {
	r.mu.Lock()
	var out []Call
	for _, c := range r.calls {
		if c.OrganizationID == orgID && !c.CreatedAt.Before(from) && c.CreatedAt.Before(to) {
			out = append(out, c)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) ListEvents(ctx context.Context, callID string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events[callID]))
	copy(out, r.events[callID])
	return out, nil
}

// CallCount returns the number of stored calls.
func (r *MemoryRepo) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
