package feed

import (
	"context"
	"errors"
	"time"

	"backend-eventhub/internal/backend"
	"backend-eventhub/internal/models"
	"backend-eventhub/internal/session"
	"backend-eventhub/internal/widget"

	"github.com/gofiber/fiber/v2"
)

type WidgetReader interface {
	Load(ctx context.Context, viewerUID string) (widget.Snapshot, error)
}

func RegisterRoutes(r fiber.Router, reg *Registry, widgets WidgetReader, viewerMiddleware ...fiber.Handler) {
	for _, mw := range viewerMiddleware {
		r.Use(mw)
	}

	serviceFor := func(c *fiber.Ctx) (*Service, error) {
		svc, ok := reg.Get(session.From(c).ExternalUID)
		if !ok {
			return nil, fiber.NewError(fiber.StatusServiceUnavailable, "feed not attached")
		}
		return svc, nil
	}

	r.Get("/", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		return c.JSON(svc.Snapshot())
	})

	r.Post("/reload", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		if err := svc.LoadFeed(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, messages[OpLoad].failure)
		}
		return c.JSON(svc.Snapshot())
	})

	r.Put("/filter", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		var criteria Criteria
		if err := c.BodyParser(&criteria); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if criteria.MaxDistanceKm < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "max_distance_km must not be negative")
		}
		return c.JSON(svc.SetCriteria(criteria))
	})

	r.Put("/past", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		var body struct {
			ShowAll bool `json:"show_all"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		return c.JSON(svc.SetShowAllPast(body.ShowAll))
	})

	r.Get("/widget", func(c *fiber.Ctx) error {
		if widgets == nil {
			return fiber.NewError(fiber.StatusNotFound, widget.ErrNoSnapshot.Error())
		}
		snap, err := widgets.Load(c.Context(), session.From(c).ExternalUID)
		if errors.Is(err, widget.ErrNoSnapshot) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(snap)
	})

	r.Post("/events", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		var draft Draft
		if err := c.BodyParser(&draft); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		id, err := svc.Create(c.Context(), draft)
		if err != nil {
			return mutationError(OpCreate, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	})

	r.Put("/events/:id", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		var draft Draft
		if err := c.BodyParser(&draft); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := svc.Update(c.Context(), c.Params("id"), draft); err != nil {
			return mutationError(OpUpdate, err)
		}
		return c.JSON(svc.Snapshot())
	})

	r.Delete("/events/:id", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.Context(), c.Params("id"), c.QueryBool("hard")); err != nil {
			return mutationError(OpDelete, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/events/:id/rsvp", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		var body struct {
			Status  backend.RSVPStatus `json:"status"`
			Arrival *time.Time         `json:"arrival"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := svc.RSVP(c.Context(), c.Params("id"), body.Status, body.Arrival); err != nil {
			return mutationError(OpRSVP, err)
		}
		return c.JSON(svc.Snapshot())
	})

	r.Post("/events/:id/share", func(c *fiber.Ctx) error {
		svc, err := serviceFor(c)
		if err != nil {
			return err
		}
		var body struct {
			FriendIDs []string `json:"friend_ids"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := svc.Share(c.Context(), c.Params("id"), recipients(svc.Friends(), body.FriendIDs)); err != nil {
			return mutationError(OpShare, err)
		}
		return c.JSON(svc.Snapshot())
	})
}

// recipients resolves IDs against the friends catalog; unknown IDs are
// sent with the ID alone.
func recipients(catalog []models.Friend, ids []string) []models.Friend {
	byID := make(map[string]models.Friend, len(catalog))
	for _, f := range catalog {
		byID[f.ID] = f
	}
	out := make([]models.Friend, 0, len(ids))
	for _, id := range dedup(ids) {
		if f, ok := byID[id]; ok {
			out = append(out, f)
			continue
		}
		out = append(out, models.Friend{ID: id})
	}
	return out
}

func mutationError(op Op, err error) error {
	switch {
	case errors.Is(err, ErrEventNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotEditable):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidDraft), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoInvitees):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, backend.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, messages[op].failure)
	case errors.Is(err, backend.ErrPermission):
		return fiber.NewError(fiber.StatusForbidden, messages[op].failure)
	default:
		return fiber.NewError(fiber.StatusBadGateway, messages[op].failure)
	}
}
