package visibility

import (
	"context"
	"time"

	"backend-eventhub/internal/db"

	"github.com/google/uuid"
)

// PostgresStore keeps hidden events, blocks and reports.
type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(db db.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) HiddenEvents(ctx context.Context, viewerID string) ([]HiddenRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT event_id, hidden_at IS NOT NULL, COALESCE(hidden_at, to_timestamp(0))
		FROM hidden_events WHERE user_id=$1
	`, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HiddenRecord
	for rows.Next() {
		var (
			rec      HiddenRecord
			stamped  bool
			hiddenAt time.Time
		)
		if err := rows.Scan(&rec.EventID, &stamped, &hiddenAt); err != nil {
			return nil, err
		}
		if stamped {
			rec.HiddenAt = &hiddenAt
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) BlockedUsers(ctx context.Context, viewerID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT blocked_user_id FROM blocked_users WHERE user_id=$1`, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteHiddenEvent(ctx context.Context, viewerID, eventID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM hidden_events WHERE user_id=$1 AND event_id=$2`, viewerID, eventID)
	return err
}

func (s *PostgresStore) HideEvent(ctx context.Context, viewerID, eventID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO hidden_events (user_id, event_id, hidden_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id, event_id) DO UPDATE SET hidden_at=EXCLUDED.hidden_at
	`, viewerID, eventID, at)
	return err
}

func (s *PostgresStore) BlockUser(ctx context.Context, viewerID, userID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO blocked_users (user_id, blocked_user_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, viewerID, userID)
	return err
}

func (s *PostgresStore) UnblockUser(ctx context.Context, viewerID, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM blocked_users WHERE user_id=$1 AND blocked_user_id=$2`, viewerID, userID)
	return err
}

func (s *PostgresStore) ReportContent(ctx context.Context, report Report) (Report, error) {
	report.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO reports (id, reporter_id, kind, target_id, reason)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, report.ID, report.ReporterID, string(report.Kind), report.TargetID, report.Reason)
	if err := row.Scan(&report.CreatedAt); err != nil {
		return Report{}, err
	}
	return report, nil
}

// PruneExpired removes stamped records older than ttl for every user.
func (s *PostgresStore) PruneExpired(ctx context.Context, now time.Time, ttl time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM hidden_events WHERE hidden_at IS NOT NULL AND hidden_at <= $1`, now.Add(-ttl))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
