package drafts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type inMemoryRepo struct {
	mu     sync.RWMutex
	drafts map[string]*entry
	ttl    time.Duration
	now    func() time.Time
}

type entry struct {
	draft   Draft
	expires time.Time
}

// NewInMemory is used when Redis is not configured. Drafts do not survive a
// restart.
func NewInMemory(ttl time.Duration) Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &inMemoryRepo{drafts: make(map[string]*entry), ttl: ttl, now: time.Now}
}

func (r *inMemoryRepo) Save(ctx context.Context, draft *Draft) error {
	if err := validate(draft); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
	r.drafts[draft.ID] = &entry{draft: copyDraft(draft), expires: now.Add(r.ttl)}
	return nil
}

func (r *inMemoryRepo) Get(ctx context.Context, id string) (*Draft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.drafts[id]
	if !ok || r.now().After(e.expires) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d := copyDraft(&e.draft)
	return &d, nil
}

func (r *inMemoryRepo) ListByUser(ctx context.Context, userID string) ([]*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := make([]*Draft, 0)
	for id, e := range r.drafts {
		if now.After(e.expires) {
			delete(r.drafts, id)
			continue
		}
		if e.draft.UserID == userID {
			d := copyDraft(&e.draft)
			out = append(out, &d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *inMemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.drafts[id]
	if !ok || r.now().After(e.expires) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.drafts, id)
	return nil
}

func (r *inMemoryRepo) ReferencedObjects(ctx context.Context, keys []string) (map[string]bool, error) {
	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	found := make(map[string]bool)
	for _, e := range r.drafts {
		if now.After(e.expires) {
			continue
		}
		for _, k := range e.draft.State.ObjectKeys() {
			if _, ok := wanted[k]; ok {
				found[k] = true
			}
		}
	}
	return found, nil
}

func copyDraft(d *Draft) Draft {
	out := *d
	out.State = d.State.Clone()
	if d.Pin.Geocoded != nil {
		c := *d.Pin.Geocoded
		out.Pin.Geocoded = &c
	}
	if d.Pin.Override != nil {
		c := *d.Pin.Override
		out.Pin.Override = &c
	}
	return out
}
