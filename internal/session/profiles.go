package session

import (
	"context"
	"sync"

	"backend-eventhub/internal/db"
	"backend-eventhub/internal/models"

	"github.com/google/uuid"
)

type PostgresProfiles struct {
	db db.Querier
}

func NewPostgresProfiles(db db.Querier) *PostgresProfiles {
	return &PostgresProfiles{db: db}
}

func (p *PostgresProfiles) UpsertProfile(ctx context.Context, externalUID, displayName, avatarURL string) (models.Friend, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO profiles (id, external_uid, display_name, avatar_url)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (external_uid) DO UPDATE
		SET display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), profiles.display_name),
		    avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), profiles.avatar_url)
		RETURNING id, display_name, COALESCE(avatar_url, '')
	`, uuid.NewString(), externalUID, displayName, avatarURL)

	var f models.Friend
	if err := row.Scan(&f.ID, &f.DisplayName, &f.AvatarURL); err != nil {
		return models.Friend{}, err
	}
	return f, nil
}

// MemoryProfiles backs sessions when no database is configured.
type MemoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.Friend
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{profiles: map[string]models.Friend{}}
}

func (p *MemoryProfiles) UpsertProfile(_ context.Context, externalUID, displayName, avatarURL string) (models.Friend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.profiles[externalUID]
	if !ok {
		f.ID = uuid.NewString()
	}
	if displayName != "" {
		f.DisplayName = displayName
	}
	if avatarURL != "" {
		f.AvatarURL = avatarURL
	}
	p.profiles[externalUID] = f
	return f, nil
}
