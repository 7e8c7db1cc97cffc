package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-eventhub/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const MaxImageBytes = 2 << 20

var (
	ErrNotImage      = errors.New("content type must be image/*")
	ErrEmptyImage    = errors.New("image body is empty")
	ErrImageTooLarge = errors.New("image exceeds 2 MiB")
	ErrImageNotFound = errors.New("image not found")
)

// Image is an uploaded event cover. Events reference it through URL.
type Image struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	ContentType string    `json:"content_type"`
	URL         string    `json:"url"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type Service struct {
	db         db.Querier
	publicPath string
}

// NewService stores images in Postgres and builds their URLs under
// publicPath, e.g. "/storage/images".
func NewService(db db.Querier, publicPath string) *Service {
	return &Service{db: db, publicPath: strings.TrimRight(publicPath, "/")}
}

func (s *Service) SaveImage(ctx context.Context, ownerID, contentType string, data []byte) (Image, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return Image{}, ErrNotImage
	}
	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return Image{}, ErrImageTooLarge
	}

	img := Image{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		ContentType: contentType,
	}
	img.URL = s.publicPath + "/" + img.ID
	row := s.db.QueryRow(ctx, `
		INSERT INTO event_images (id, owner_id, content_type, data)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, img.ID, ownerID, contentType, data)
	if err := row.Scan(&img.CreatedAt); err != nil {
		return Image{}, err
	}
	return img, nil
}

func (s *Service) Image(ctx context.Context, id string) (Image, error) {
	img := Image{ID: id, URL: s.publicPath + "/" + id}
	row := s.db.QueryRow(ctx, `
		SELECT owner_id, content_type, data, created_at
		FROM event_images WHERE id=$1
	`, id)
	if err := row.Scan(&img.OwnerID, &img.ContentType, &img.Data, &img.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Image{}, ErrImageNotFound
		}
		return Image{}, err
	}
	return img, nil
}
