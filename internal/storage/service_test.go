package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var errSave = errors.New("save failed")

func TestSaveImage(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	created := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO event_images`).
		WithArgs(pgxmock.AnyArg(), "p-1", "image/png", []byte("png")).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	svc := NewService(mock, "/storage/images/")
	img, err := svc.SaveImage(context.Background(), "p-1", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("save image: %v", err)
	}
	if img.ID == "" || img.URL != "/storage/images/"+img.ID || !img.CreatedAt.Equal(created) {
		t.Fatalf("unexpected image %+v", img)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveImageValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	svc := NewService(mock, "/storage/images")

	cases := []struct {
		contentType string
		data        []byte
		want        error
	}{
		{"text/plain", []byte("x"), ErrNotImage},
		{"image/jpeg", nil, ErrEmptyImage},
		{"image/jpeg", bytes.Repeat([]byte{1}, MaxImageBytes+1), ErrImageTooLarge},
	}
	for _, tc := range cases {
		if _, err := svc.SaveImage(context.Background(), "p-1", tc.contentType, tc.data); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.contentType, tc.want, err)
		}
	}
}

func TestSaveImageError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO event_images`).
		WithArgs(pgxmock.AnyArg(), "p-1", "image/png", []byte("png")).
		WillReturnError(errSave)

	if _, err := NewService(mock, "/storage/images").SaveImage(context.Background(), "p-1", "image/png", []byte("png")); !errors.Is(err, errSave) {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestImage(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT owner_id, content_type, data, created_at`).
		WithArgs("img-1").
		WillReturnRows(pgxmock.NewRows([]string{"owner_id", "content_type", "data", "created_at"}).
			AddRow("p-1", "image/png", []byte("png"), time.Now()))
	mock.ExpectQuery(`SELECT owner_id, content_type, data, created_at`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService(mock, "/storage/images")
	img, err := svc.Image(context.Background(), "img-1")
	if err != nil || string(img.Data) != "png" || img.URL != "/storage/images/img-1" {
		t.Fatalf("unexpected image %+v %v", img, err)
	}
	if _, err := svc.Image(context.Background(), "missing"); !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
}
