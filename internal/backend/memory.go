package backend

import (
	"context"
	"sort"
	"sync"
	"time"

	"backend-eventhub/internal/models"

	"github.com/google/uuid"
)

// Memory is a local-only Port. Events it creates never leave the process.
type Memory struct {
	mu      sync.RWMutex
	events  map[string]models.Event
	deleted map[string]bool
	invites map[string]map[string][]string // event -> invitee -> inviters
	friends map[string][]models.Friend
}

func NewMemory() *Memory {
	return &Memory{
		events:  map[string]models.Event{},
		deleted: map[string]bool{},
		invites: map[string]map[string][]string{},
		friends: map[string][]models.Friend{},
	}
}

func (m *Memory) Kind() Kind { return KindLocal }

// SetFriends replaces the catalog returned to userID.
func (m *Memory) SetFriends(userID string, friends []models.Friend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.friends[userID] = append([]models.Friend(nil), friends...)
}

// Put stores an event as-is.
func (m *Memory) Put(e models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e.Clone()
	delete(m.deleted, e.ID)
}

func (m *Memory) FetchFeed(_ context.Context, viewer models.UserSession, _ *models.Coordinate) (Feed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []models.Event
	for id, e := range m.events {
		if m.deleted[id] {
			continue
		}
		if !memoryVisible(e, viewer) {
			continue
		}
		out := e.Clone()
		out.InvitedByFriendIDs = append([]string(nil), m.invites[id][viewer.Viewer.ID]...)
		events = append(events, out)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartAt.Equal(events[j].StartAt) {
			return events[i].StartAt.Before(events[j].StartAt)
		}
		return events[i].ID < events[j].ID
	})
	return Feed{
		Events:  events,
		Friends: append([]models.Friend(nil), m.friends[viewer.Viewer.ID]...),
	}, nil
}

func memoryVisible(e models.Event, viewer models.UserSession) bool {
	if e.Privacy == models.PrivacyPublic {
		return true
	}
	if e.OwnerID != "" && viewer.IsViewer(e.OwnerID) {
		return true
	}
	for _, id := range e.SharedInviteFriendIDs {
		if viewer.IsViewer(id) {
			return true
		}
	}
	return false
}

func (m *Memory) SendInvite(_ context.Context, eventID string, from models.Friend, to []models.Friend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok || m.deleted[eventID] {
		return ErrNotFound
	}
	if m.invites[eventID] == nil {
		m.invites[eventID] = map[string][]string{}
	}
	for _, f := range to {
		m.invites[eventID][f.ID] = append(m.invites[eventID][f.ID], from.ID)
		if !contains(e.SharedInviteFriendIDs, f.ID) {
			e.SharedInviteFriendIDs = append(e.SharedInviteFriendIDs, f.ID)
		}
	}
	m.events[eventID] = e
	return nil
}

func (m *Memory) RSVP(_ context.Context, req RSVPRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.lookup(rsvpKey(req.EventID, req.BackendID))
	e, ok := m.events[id]
	if !ok || m.deleted[id] {
		return ErrNotFound
	}
	e.AttendingFriendIDs = without(e.AttendingFriendIDs, req.UserID)
	delete(e.ArrivalTimes, req.UserID)
	if req.Status == RSVPGoing {
		e.AttendingFriendIDs = append(e.AttendingFriendIDs, req.UserID)
		if req.Arrival != nil {
			if e.ArrivalTimes == nil {
				e.ArrivalTimes = map[string]time.Time{}
			}
			e.ArrivalTimes[req.UserID] = *req.Arrival
		}
	}
	m.events[id] = e
	return nil
}

// lookup resolves a backend identifier back to the event key.
func (m *Memory) lookup(key string) string {
	if _, ok := m.events[key]; ok {
		return key
	}
	for id, e := range m.events {
		if e.BackendID == key {
			return id
		}
	}
	return key
}

func (m *Memory) CreateEvent(_ context.Context, req CreateRequest) (string, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	e := models.Event{
		ID:             id,
		Origin:         models.OriginLocal,
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		Privacy:        req.Privacy,
		OwnerID:        req.OwnerUID,
		OwnerProfileID: req.Owner.ID,
		Categories:     append([]string(nil), req.Categories...),
		ImageURL:       req.ImageURL,
	}
	if req.Coordinate != nil {
		c := *req.Coordinate
		e.Coordinate = &c
	}
	if req.Owner.ID != "" {
		e.AttendingFriendIDs = []string{req.Owner.ID}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[id] = e
	return id, nil
}

func (m *Memory) UpdateEvent(_ context.Context, req UpdateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[req.EventID]
	if !ok || m.deleted[req.EventID] {
		return ErrNotFound
	}
	e.Title = req.Title
	e.Location = req.Location
	e.StartAt = req.StartAt
	e.EndAt = req.EndAt
	e.Coordinate = nil
	if req.Coordinate != nil {
		c := *req.Coordinate
		e.Coordinate = &c
	}
	e.Privacy = req.Privacy
	e.SharedInviteFriendIDs = append([]string(nil), req.SharedInviteFriendIDs...)
	e.Categories = append([]string(nil), req.Categories...)
	m.events[req.EventID] = e
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, eventID string, hard bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok || m.deleted[eventID] {
		return ErrNotFound
	}
	if hard {
		delete(m.events, eventID)
		delete(m.invites, eventID)
		return nil
	}
	m.deleted[eventID] = true
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func without(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
