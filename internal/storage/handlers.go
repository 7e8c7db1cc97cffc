package storage

import (
	"errors"

	"backend-eventhub/internal/session"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts image upload behind viewerMiddleware and serves
// images publicly so feed clients can load them by URL.
func RegisterRoutes(r fiber.Router, svc *Service, viewerMiddleware ...fiber.Handler) {
	upload := append(append([]fiber.Handler{}, viewerMiddleware...), func(c *fiber.Ctx) error {
		img, err := svc.SaveImage(c.Context(), session.From(c).Viewer.ID, c.Get(fiber.HeaderContentType), c.Body())
		switch {
		case errors.Is(err, ErrNotImage), errors.Is(err, ErrEmptyImage):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrImageTooLarge):
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(img)
	})
	r.Post("/images", upload...)

	r.Get("/images/:id", func(c *fiber.Ctx) error {
		img, err := svc.Image(c.Context(), c.Params("id"))
		if errors.Is(err, ErrImageNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Set(fiber.HeaderContentType, img.ContentType)
		c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
		return c.Send(img.Data)
	})
}
