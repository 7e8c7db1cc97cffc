package visibility

import (
	"context"
	"log"
	"sync"
	"time"
)

const DefaultHiddenTTL = 24 * time.Hour

// Store is the read side of the moderation records.
type Store interface {
	HiddenEvents(ctx context.Context, viewerID string) ([]HiddenRecord, error)
	BlockedUsers(ctx context.Context, viewerID string) ([]string, error)
	DeleteHiddenEvent(ctx context.Context, viewerID, eventID string) error
}

// Filter turns moderation records into the hidden/blocked sets used by the
// feed. When a query fails it keeps serving the last sets it computed for
// that viewer.
type Filter struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	lastGood map[string]Sets
	cleanup  sync.WaitGroup
}

func NewFilter(store Store, ttl time.Duration, now func() time.Time) *Filter {
	if ttl <= 0 {
		ttl = DefaultHiddenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Filter{
		store:    store,
		ttl:      ttl,
		now:      now,
		lastGood: map[string]Sets{},
	}
}

func (f *Filter) Compute(ctx context.Context, viewerID string) Sets {
	f.mu.Lock()
	prev, havePrev := f.lastGood[viewerID]
	f.mu.Unlock()

	out := Sets{Hidden: map[string]struct{}{}, Blocked: map[string]struct{}{}}

	records, err := f.store.HiddenEvents(ctx, viewerID)
	if err != nil {
		log.Printf("hidden events query failed for %s: %v", viewerID, err)
		if havePrev {
			out.Hidden = cloneSet(prev.Hidden)
		}
	} else {
		now := f.now()
		for _, rec := range records {
			if rec.HiddenAt != nil && !now.Before(rec.HiddenAt.Add(f.ttl)) {
				f.expire(viewerID, rec.EventID)
				continue
			}
			out.Hidden[rec.EventID] = struct{}{}
		}
	}

	blocked, err := f.store.BlockedUsers(ctx, viewerID)
	if err != nil {
		log.Printf("blocked users query failed for %s: %v", viewerID, err)
		if havePrev {
			out.Blocked = cloneSet(prev.Blocked)
		}
	} else {
		for _, id := range blocked {
			out.Blocked[id] = struct{}{}
		}
	}

	f.mu.Lock()
	f.lastGood[viewerID] = out.clone()
	f.mu.Unlock()
	return out
}

// Forget drops the cached sets of a viewer that signed out.
func (f *Filter) Forget(viewerID string) {
	f.mu.Lock()
	delete(f.lastGood, viewerID)
	f.mu.Unlock()
}

// Wait blocks until scheduled cleanups have finished.
func (f *Filter) Wait() {
	f.cleanup.Wait()
}

func (f *Filter) expire(viewerID, eventID string) {
	f.cleanup.Add(1)
	go func() {
		defer f.cleanup.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := f.store.DeleteHiddenEvent(ctx, viewerID, eventID); err != nil {
			log.Printf("expired hidden record cleanup failed for %s/%s: %v", viewerID, eventID, err)
		}
	}()
}
