package visibility

import (
	"context"
	"time"

	"backend-eventhub/internal/models"
	"backend-eventhub/internal/session"

	"github.com/gofiber/fiber/v2"
)

// Moderator is the write side of the moderation records.
type Moderator interface {
	HideEvent(ctx context.Context, viewerID, eventID string, at time.Time) error
	DeleteHiddenEvent(ctx context.Context, viewerID, eventID string) error
	BlockUser(ctx context.Context, viewerID, userID string) error
	UnblockUser(ctx context.Context, viewerID, userID string) error
	ReportContent(ctx context.Context, report Report) (Report, error)
}

// RegisterRoutes mounts the moderation endpoints. onChange is invoked after
// every successful hide/block mutation so the viewer's feed can reload.
func RegisterRoutes(r fiber.Router, mod Moderator, onChange func(models.UserSession), viewerMiddleware ...fiber.Handler) {
	for _, mw := range viewerMiddleware {
		r.Use(mw)
	}

	changed := func(sess models.UserSession) {
		if onChange != nil {
			onChange(sess)
		}
	}

	r.Post("/hidden/:eventID", func(c *fiber.Ctx) error {
		sess := session.From(c)
		if err := mod.HideEvent(c.Context(), sess.Viewer.ID, c.Params("eventID"), time.Now()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		changed(sess)
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/hidden/:eventID", func(c *fiber.Ctx) error {
		sess := session.From(c)
		if err := mod.DeleteHiddenEvent(c.Context(), sess.Viewer.ID, c.Params("eventID")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		changed(sess)
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/blocked/:userID", func(c *fiber.Ctx) error {
		sess := session.From(c)
		if sess.IsViewer(c.Params("userID")) {
			return fiber.NewError(fiber.StatusBadRequest, "cannot block yourself")
		}
		if err := mod.BlockUser(c.Context(), sess.Viewer.ID, c.Params("userID")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		changed(sess)
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/blocked/:userID", func(c *fiber.Ctx) error {
		sess := session.From(c)
		if err := mod.UnblockUser(c.Context(), sess.Viewer.ID, c.Params("userID")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		changed(sess)
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/reports", func(c *fiber.Ctx) error {
		var req Report
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.TargetID == "" || req.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "target_id and reason required")
		}
		if req.Kind != ReportEvent && req.Kind != ReportComment {
			return fiber.NewError(fiber.StatusBadRequest, "kind must be event or comment")
		}
		req.ReporterID = session.From(c).Viewer.ID
		report, err := mod.ReportContent(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(report)
	})
}
