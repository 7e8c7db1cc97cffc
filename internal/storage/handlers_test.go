package storage

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-eventhub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func newStorageApp(t *testing.T) (*fiber.App, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	app := fiber.New()
	viewer := func(c *fiber.Ctx) error {
		c.Locals("session", models.UserSession{Viewer: models.Friend{ID: "p-1"}})
		return c.Next()
	}
	RegisterRoutes(app.Group("/storage"), NewService(mock, "/storage/images"), viewer)
	return app, mock
}

func TestStorageUploadHandler(t *testing.T) {
	app, mock := newStorageApp(t)
	mock.ExpectQuery(`INSERT INTO event_images`).
		WithArgs(pgxmock.AnyArg(), "p-1", "image/png", []byte("png-bytes")).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/storage/images", bytes.NewBufferString("png-bytes"))
	req.Header.Set("Content-Type", "image/png")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status: %v %d", err, resp.StatusCode)
	}
}

func TestStorageUploadRejectsNonImage(t *testing.T) {
	app, _ := newStorageApp(t)
	req := httptest.NewRequest(http.MethodPost, "/storage/images", bytes.NewBufferString(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStorageUploadError(t *testing.T) {
	app, mock := newStorageApp(t)
	mock.ExpectQuery(`INSERT INTO event_images`).
		WithArgs(pgxmock.AnyArg(), "p-1", "image/png", []byte("png")).
		WillReturnError(errSave)

	req := httptest.NewRequest(http.MethodPost, "/storage/images", bytes.NewBufferString("png"))
	req.Header.Set("Content-Type", "image/png")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected error status")
	}
}

func TestStorageServeImage(t *testing.T) {
	app, mock := newStorageApp(t)
	mock.ExpectQuery(`SELECT owner_id, content_type, data, created_at`).
		WithArgs("img-1").
		WillReturnRows(pgxmock.NewRows([]string{"owner_id", "content_type", "data", "created_at"}).
			AddRow("p-1", "image/jpeg", []byte("jpeg"), time.Now()))
	mock.ExpectQuery(`SELECT owner_id, content_type, data, created_at`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/storage/images/img-1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("serve status: %v", err)
	}
	if resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "jpeg" {
		t.Fatalf("unexpected body %q", body)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/storage/images/missing", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
