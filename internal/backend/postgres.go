package backend

import (
	"context"
	"time"

	"backend-eventhub/internal/db"
	"backend-eventhub/internal/friends"
	"backend-eventhub/internal/models"
	"backend-eventhub/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Postgres is the remote-backed Port.
type Postgres struct {
	db       db.Querier
	friends  *friends.Service
	radiusKm float64
}

func NewPostgres(db db.Querier, friendSvc *friends.Service, radiusKm float64) *Postgres {
	return &Postgres{db: db, friends: friendSvc, radiusKm: radiusKm}
}

func (p *Postgres) Kind() Kind { return KindRemote }

func (p *Postgres) FetchFeed(ctx context.Context, viewer models.UserSession, near *models.Coordinate) (Feed, error) {
	rows, err := p.db.Query(ctx, `
		SELECT e.id, COALESCE(e.backend_id, ''), e.title, COALESCE(e.description, ''), e.location, e.start_at,
		       e.end_at IS NOT NULL, COALESCE(e.end_at, e.start_at),
		       e.lat IS NOT NULL AND e.lng IS NOT NULL, COALESCE(e.lat, 0), COALESCE(e.lng, 0),
		       e.privacy, COALESCE(e.owner_id, ''), COALESCE(p.id, ''),
		       e.shared_invite_ids, e.categories, COALESCE(e.image_url, '')
		FROM events e
		LEFT JOIN profiles p ON p.external_uid = e.owner_id
		WHERE e.deleted_at IS NULL
		  AND (e.privacy = 'public' OR e.owner_id = $1 OR $2 = ANY(e.shared_invite_ids))
		ORDER BY e.start_at
	`, viewer.ExternalUID, viewer.Viewer.ID)
	if err != nil {
		return Feed{}, classify(err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			e              models.Event
			hasEnd, hasGeo bool
			endAt          time.Time
			lat, lng       float64
			privacy        string
		)
		if err := rows.Scan(&e.ID, &e.BackendID, &e.Title, &e.Description, &e.Location, &e.StartAt,
			&hasEnd, &endAt, &hasGeo, &lat, &lng,
			&privacy, &e.OwnerID, &e.OwnerProfileID, &e.SharedInviteFriendIDs, &e.Categories, &e.ImageURL); err != nil {
			return Feed{}, err
		}
		if hasEnd {
			e.EndAt = endAt
		}
		if hasGeo {
			e.Coordinate = &models.Coordinate{Lat: lat, Lng: lng}
		}
		e.Privacy = models.Privacy(privacy)
		e.Origin = models.OriginRemote
		if !p.withinRadius(near, e.Coordinate) {
			continue
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return Feed{}, classify(err)
	}

	if err := p.loadAttendees(ctx, events); err != nil {
		return Feed{}, err
	}
	if err := p.loadInvitedBy(ctx, events, viewer.Viewer.ID); err != nil {
		return Feed{}, err
	}

	var catalog []models.Friend
	if p.friends != nil {
		catalog, err = p.friends.Friends(ctx, viewer.Viewer.ID)
		if err != nil {
			return Feed{}, classify(err)
		}
	}
	return Feed{Events: events, Friends: catalog}, nil
}

func (p *Postgres) withinRadius(near, at *models.Coordinate) bool {
	if p.radiusKm <= 0 || near == nil || at == nil {
		return true
	}
	return geo.HaversineKm(near.Lat, near.Lng, at.Lat, at.Lng) <= p.radiusKm
}

func indexByKey(events []models.Event) ([]string, map[string]int) {
	keys := make([]string, 0, len(events))
	idx := make(map[string]int, len(events))
	for i, e := range events {
		k := rsvpKey(e.ID, e.BackendID)
		keys = append(keys, k)
		idx[k] = i
	}
	return keys, idx
}

func (p *Postgres) loadAttendees(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	keys, idx := indexByKey(events)
	rows, err := p.db.Query(ctx, `
		SELECT event_id, user_id, arrival_at IS NOT NULL, COALESCE(arrival_at, to_timestamp(0))
		FROM event_attendees
		WHERE event_id = ANY($1) AND status = 'going'
		ORDER BY responded_at
	`, keys)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key, userID string
			hasArrival  bool
			arrival     time.Time
		)
		if err := rows.Scan(&key, &userID, &hasArrival, &arrival); err != nil {
			return err
		}
		i, ok := idx[key]
		if !ok {
			continue
		}
		events[i].AttendingFriendIDs = append(events[i].AttendingFriendIDs, userID)
		if hasArrival {
			if events[i].ArrivalTimes == nil {
				events[i].ArrivalTimes = map[string]time.Time{}
			}
			events[i].ArrivalTimes[userID] = arrival
		}
	}
	return classify(rows.Err())
}

func (p *Postgres) loadInvitedBy(ctx context.Context, events []models.Event, viewerID string) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, 0, len(events))
	idx := make(map[string]int, len(events))
	for i, e := range events {
		ids = append(ids, e.ID)
		idx[e.ID] = i
	}
	rows, err := p.db.Query(ctx, `
		SELECT event_id, from_user_id
		FROM event_invites
		WHERE event_id = ANY($1) AND to_user_id=$2
		ORDER BY created_at
	`, ids, viewerID)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID, fromID string
		if err := rows.Scan(&eventID, &fromID); err != nil {
			return err
		}
		if i, ok := idx[eventID]; ok {
			events[i].InvitedByFriendIDs = append(events[i].InvitedByFriendIDs, fromID)
		}
	}
	return classify(rows.Err())
}

func (p *Postgres) SendInvite(ctx context.Context, eventID string, from models.Friend, to []models.Friend) error {
	ids := make([]string, 0, len(to))
	for _, f := range to {
		ids = append(ids, f.ID)
	}
	err := db.WithTx(ctx, p.db, func(tx pgx.Tx) error {
		for _, id := range ids {
			_, err := tx.Exec(ctx, `
				INSERT INTO event_invites (event_id, from_user_id, to_user_id)
				VALUES ($1,$2,$3)
				ON CONFLICT DO NOTHING
			`, eventID, from.ID, id)
			if err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `
			UPDATE events
			SET shared_invite_ids = ARRAY(SELECT DISTINCT unnest(shared_invite_ids || $2::text[]))
			WHERE id=$1 AND deleted_at IS NULL
		`, eventID, ids)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	return classify(err)
}

func (p *Postgres) RSVP(ctx context.Context, req RSVPRequest) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO event_attendees (event_id, user_id, status, arrival_at, responded_at)
		VALUES ($1,$2,$3,$4, now())
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status=EXCLUDED.status, arrival_at=EXCLUDED.arrival_at, responded_at=now()
	`, rsvpKey(req.EventID, req.BackendID), req.UserID, string(req.Status), req.Arrival)
	return classify(err)
}

func (p *Postgres) CreateEvent(ctx context.Context, req CreateRequest) (string, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	var lat, lng *float64
	if req.Coordinate != nil {
		lat, lng = &req.Coordinate.Lat, &req.Coordinate.Lng
	}
	row := p.db.QueryRow(ctx, `
		INSERT INTO events (id, title, description, location, start_at, end_at, lat, lng, privacy, owner_id, categories, image_url, shared_invite_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, '{}')
		RETURNING id
	`, id, req.Title, req.Description, req.Location, req.StartAt, timePtr(req.EndAt), lat, lng,
		string(req.Privacy), req.OwnerUID, req.Categories, req.ImageURL)
	if err := row.Scan(&id); err != nil {
		return "", classify(err)
	}

	if req.Owner.ID != "" {
		if err := p.RSVP(ctx, RSVPRequest{EventID: id, UserID: req.Owner.ID, Status: RSVPGoing}); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (p *Postgres) UpdateEvent(ctx context.Context, req UpdateRequest) error {
	var lat, lng *float64
	if req.Coordinate != nil {
		lat, lng = &req.Coordinate.Lat, &req.Coordinate.Lng
	}
	tag, err := p.db.Exec(ctx, `
		UPDATE events
		SET title=$2, location=$3, start_at=$4, end_at=$5, lat=$6, lng=$7, privacy=$8, shared_invite_ids=$9, categories=$10
		WHERE id=$1 AND deleted_at IS NULL
	`, req.EventID, req.Title, req.Location, req.StartAt, timePtr(req.EndAt), lat, lng,
		string(req.Privacy), req.SharedInviteFriendIDs, req.Categories)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteEvent(ctx context.Context, eventID string, hard bool) error {
	if hard {
		return p.purgeEvent(ctx, eventID)
	}
	tag, err := p.db.Exec(ctx, `UPDATE events SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`, eventID)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// purgeEvent removes the event with its attendee and invite rows.
func (p *Postgres) purgeEvent(ctx context.Context, eventID string) error {
	err := db.WithTx(ctx, p.db, func(tx pgx.Tx) error {
		var backendID string
		err := tx.QueryRow(ctx, `DELETE FROM events WHERE id=$1 RETURNING COALESCE(backend_id, '')`, eventID).Scan(&backendID)
		if err != nil {
			return err
		}
		keys := []string{eventID}
		if backendID != "" {
			keys = append(keys, backendID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM event_attendees WHERE event_id = ANY($1)`, keys); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM event_invites WHERE event_id=$1`, eventID)
		return err
	})
	return classify(err)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
