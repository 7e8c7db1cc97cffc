package widget

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"backend-eventhub/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrNoSnapshot = errors.New("no widget snapshot")

// Snapshot is what a home-screen widget reads without talking to the feed.
type Snapshot struct {
	Events      []models.Event  `json:"events"`
	Friends     []models.Friend `json:"friends"`
	CurrentUser models.Friend   `json:"current_user"`
	SavedAt     time.Time       `json:"saved_at"`
}

// Store keeps the latest snapshot per viewer in redis. A save that was
// started before a newer one finished is dropped.
type Store struct {
	redis  *redis.Client
	prefix string

	mu      sync.Mutex
	issued  map[string]uint64
	written map[string]uint64
	locks   map[string]*sync.Mutex
}

func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "widget:"
	}
	return &Store{
		redis:   client,
		prefix:  prefix,
		issued:  map[string]uint64{},
		written: map[string]uint64{},
		locks:   map[string]*sync.Mutex{},
	}
}

func (s *Store) Save(ctx context.Context, viewerUID string, snap Snapshot) error {
	s.mu.Lock()
	s.issued[viewerUID]++
	seq := s.issued[viewerUID]
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	// Writes for one viewer are ordered by their own lock so a slow SET
	// never holds up other viewers.
	vl := s.viewerLock(viewerUID)
	vl.Lock()
	defer vl.Unlock()

	s.mu.Lock()
	stale := seq < s.written[viewerUID]
	s.mu.Unlock()
	if stale {
		return nil
	}
	if err := s.redis.Set(ctx, s.key(viewerUID), data, 0).Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.written[viewerUID] = seq
	s.mu.Unlock()
	return nil
}

func (s *Store) viewerLock(viewerUID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[viewerUID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[viewerUID] = l
	}
	return l
}

func (s *Store) Load(ctx context.Context, viewerUID string) (Snapshot, error) {
	data, err := s.redis.Get(ctx, s.key(viewerUID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) key(viewerUID string) string {
	return s.prefix + viewerUID
}
