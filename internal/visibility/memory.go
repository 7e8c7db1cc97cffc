package visibility

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-process moderation store used without Postgres.
type MemoryStore struct {
	mu      sync.Mutex
	hidden  map[string]map[string]*time.Time
	blocked map[string]map[string]struct{}
	reports []Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hidden:  map[string]map[string]*time.Time{},
		blocked: map[string]map[string]struct{}{},
	}
}

func (m *MemoryStore) HiddenEvents(_ context.Context, viewerID string) ([]HiddenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HiddenRecord
	for id, at := range m.hidden[viewerID] {
		out = append(out, HiddenRecord{EventID: id, HiddenAt: at})
	}
	return out, nil
}

func (m *MemoryStore) BlockedUsers(_ context.Context, viewerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id := range m.blocked[viewerID] {
		out = append(out, id)
	}
	return out, nil
}

func (m *MemoryStore) DeleteHiddenEvent(_ context.Context, viewerID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hidden[viewerID], eventID)
	return nil
}

func (m *MemoryStore) HideEvent(_ context.Context, viewerID, eventID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hidden[viewerID] == nil {
		m.hidden[viewerID] = map[string]*time.Time{}
	}
	m.hidden[viewerID][eventID] = &at
	return nil
}

// HidePermanently stores a record without a timestamp.
func (m *MemoryStore) HidePermanently(viewerID, eventID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hidden[viewerID] == nil {
		m.hidden[viewerID] = map[string]*time.Time{}
	}
	m.hidden[viewerID][eventID] = nil
}

func (m *MemoryStore) BlockUser(_ context.Context, viewerID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocked[viewerID] == nil {
		m.blocked[viewerID] = map[string]struct{}{}
	}
	m.blocked[viewerID][userID] = struct{}{}
	return nil
}

func (m *MemoryStore) UnblockUser(_ context.Context, viewerID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocked[viewerID], userID)
	return nil
}

func (m *MemoryStore) ReportContent(_ context.Context, report Report) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report.ID = uuid.NewString()
	report.CreatedAt = time.Now()
	m.reports = append(m.reports, report)
	return report, nil
}
