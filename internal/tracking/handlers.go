package tracking

import (
	"errors"

	"backend-eventhub/internal/session"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, viewerMiddleware ...fiber.Handler) {
	for _, mw := range viewerMiddleware {
		r.Use(mw)
	}

	r.Post("/location", func(c *fiber.Ctx) error {
		var req Ping
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		update, err := svc.Record(c.Context(), session.From(c).ExternalUID, req)
		switch {
		case errors.Is(err, ErrInvalidCoordinate):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrNoSession):
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(update)
	})

	r.Get("/location", func(c *fiber.Ctx) error {
		loc := session.From(c).Location
		if loc == nil {
			return fiber.NewError(fiber.StatusNotFound, "no location reported")
		}
		return c.JSON(loc)
	})
}
