package friends

import (
	"context"
	"errors"

	"backend-eventhub/internal/db"
	"backend-eventhub/internal/models"
)

var ErrSelfFriend = errors.New("cannot befriend yourself")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// AddFriend stores the friendship in both directions.
func (s *Service) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return ErrSelfFriend
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO friendships (user_id, friend_id)
		VALUES ($1,$2), ($2,$1)
		ON CONFLICT DO NOTHING
	`, userID, friendID)
	return err
}

func (s *Service) RemoveFriend(ctx context.Context, userID, friendID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM friendships
		WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)
	`, userID, friendID)
	return err
}

func (s *Service) Friends(ctx context.Context, userID string) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.display_name, COALESCE(p.avatar_url, '')
		FROM friendships f
		JOIN profiles p ON p.id = f.friend_id
		WHERE f.user_id=$1
		ORDER BY p.display_name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []models.Friend
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.ID, &f.DisplayName, &f.AvatarURL); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}
