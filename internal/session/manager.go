package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend-eventhub/internal/models"
)

var (
	ErrNoSession           = errors.New("no active session")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrRecoveryUnavailable = errors.New("no recovery credentials for session")
)

type ChangeKind string

const (
	SignedIn  ChangeKind = "signed_in"
	SignedOut ChangeKind = "signed_out"
	Refreshed ChangeKind = "refreshed"
)

type Change struct {
	Kind    ChangeKind
	Session models.UserSession
}

type Verifier interface {
	ValidateAccessToken(token string) (string, error)
	Recover(userID, secret string) (string, error)
}

type ProfileStore interface {
	UpsertProfile(ctx context.Context, externalUID, displayName, avatarURL string) (models.Friend, error)
}

type SignInRequest struct {
	Token       string             `json:"-"`
	DisplayName string             `json:"display_name"`
	AvatarURL   string             `json:"avatar_url"`
	Location    *models.Coordinate `json:"location"`
	Recovery    string             `json:"recovery_secret"`
}

// Manager owns the viewer sessions. Listeners registered with OnChange are
// called in registration order, outside the lock.
type Manager struct {
	verifier Verifier
	profiles ProfileStore
	now      func() time.Time

	mu        sync.RWMutex
	sessions  map[string]models.UserSession
	listeners []func(Change)
}

func NewManager(verifier Verifier, profiles ProfileStore) *Manager {
	return &Manager{
		verifier: verifier,
		profiles: profiles,
		now:      time.Now,
		sessions: map[string]models.UserSession{},
	}
}

func (m *Manager) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) SignIn(ctx context.Context, req SignInRequest) (models.UserSession, error) {
	uid, err := m.verifier.ValidateAccessToken(req.Token)
	if err != nil {
		return models.UserSession{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	viewer, err := m.profiles.UpsertProfile(ctx, uid, req.DisplayName, req.AvatarURL)
	if err != nil {
		return models.UserSession{}, err
	}
	sess := models.UserSession{
		Viewer:      viewer,
		Location:    req.Location,
		ExternalUID: uid,
		Token:       req.Token,
		Recovery:    req.Recovery,
		SignedInAt:  m.now(),
	}

	m.mu.Lock()
	m.sessions[uid] = sess
	m.mu.Unlock()

	m.notify(Change{Kind: SignedIn, Session: sess})
	return sess, nil
}

func (m *Manager) SignOut(uid string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()

	if ok {
		m.notify(Change{Kind: SignedOut, Session: sess})
	}
	return ok
}

func (m *Manager) Get(uid string) (models.UserSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[uid]
	return sess, ok
}

// Reauthenticate swaps the session's token using its recovery secret. The
// session is replaced as a whole.
func (m *Manager) Reauthenticate(_ context.Context, uid string) (models.UserSession, error) {
	m.mu.RLock()
	sess, ok := m.sessions[uid]
	m.mu.RUnlock()
	if !ok {
		return models.UserSession{}, ErrNoSession
	}
	if sess.Recovery == "" {
		return models.UserSession{}, ErrRecoveryUnavailable
	}

	token, err := m.verifier.Recover(uid, sess.Recovery)
	if err != nil {
		return models.UserSession{}, err
	}
	next := sess
	next.Token = token
	next.SignedInAt = m.now()

	m.mu.Lock()
	if _, still := m.sessions[uid]; !still {
		m.mu.Unlock()
		return models.UserSession{}, ErrNoSession
	}
	m.sessions[uid] = next
	m.mu.Unlock()

	m.notify(Change{Kind: Refreshed, Session: next})
	return next, nil
}

// UpdateLocation replaces the session with one at loc and reports it as
// refreshed.
func (m *Manager) UpdateLocation(uid string, loc models.Coordinate) (models.UserSession, error) {
	m.mu.Lock()
	sess, ok := m.sessions[uid]
	if !ok {
		m.mu.Unlock()
		return models.UserSession{}, ErrNoSession
	}
	next := sess
	next.Location = &loc
	m.sessions[uid] = next
	m.mu.Unlock()

	m.notify(Change{Kind: Refreshed, Session: next})
	return next, nil
}

func (m *Manager) notify(ch Change) {
	m.mu.RLock()
	listeners := append([]func(Change){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(ch)
	}
}
