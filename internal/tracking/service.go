package tracking

import (
	"context"
	"errors"
	"log"
	"time"

	"backend-eventhub/internal/db"
	"backend-eventhub/internal/models"
	"backend-eventhub/internal/session"
	"backend-eventhub/internal/shared/geo"
)

var ErrInvalidCoordinate = errors.New("lat must be within ±90 and lng within ±180")

type LocationStore interface {
	SaveLocation(ctx context.Context, viewerID string, p Ping) error
}

// PostgresStore keeps the last reported location per viewer.
type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(db db.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveLocation(ctx context.Context, viewerID string, p Ping) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO viewer_locations (user_id, lat, lng, recorded_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE
		SET lat=EXCLUDED.lat, lng=EXCLUDED.lng, recorded_at=EXCLUDED.recorded_at
	`, viewerID, p.Lat, p.Lng, p.RecordedAt)
	return err
}

// Service moves the viewer's session to each reported location. Distances
// follow immediately through the session change; a full reload is
// requested once the viewer has moved at least reloadKm.
type Service struct {
	store    LocationStore
	sessions *session.Manager
	reload   func(uid string)
	reloadKm float64
	now      func() time.Time
}

func NewService(store LocationStore, sessions *session.Manager, reloadKm float64, reload func(uid string)) *Service {
	if reloadKm <= 0 {
		reloadKm = 1
	}
	return &Service{
		store:    store,
		sessions: sessions,
		reload:   reload,
		reloadKm: reloadKm,
		now:      time.Now,
	}
}

func (s *Service) Record(ctx context.Context, uid string, p Ping) (Update, error) {
	if !geo.Valid(p.Lat, p.Lng) {
		return Update{}, ErrInvalidCoordinate
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = s.now()
	}

	prev, ok := s.sessions.Get(uid)
	if !ok {
		return Update{}, session.ErrNoSession
	}
	if s.store != nil {
		if err := s.store.SaveLocation(ctx, prev.Viewer.ID, p); err != nil {
			log.Printf("location save failed for %s: %v", uid, err)
		}
	}

	loc := models.Coordinate{Lat: p.Lat, Lng: p.Lng}
	if _, err := s.sessions.UpdateLocation(uid, loc); err != nil {
		return Update{}, err
	}

	update := Update{Location: loc, RecordedAt: p.RecordedAt}
	if prev.Location != nil {
		moved := geo.HaversineKm(prev.Location.Lat, prev.Location.Lng, p.Lat, p.Lng)
		update.MovedKm = &moved
	}
	if update.MovedKm == nil || *update.MovedKm >= s.reloadKm {
		if s.reload != nil {
			s.reload(uid)
		}
		update.Reloaded = true
	}
	return update, nil
}
