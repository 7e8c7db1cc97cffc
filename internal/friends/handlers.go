package friends

import (
	"errors"

	"backend-eventhub/internal/session"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, viewerMiddleware ...fiber.Handler) {
	for _, mw := range viewerMiddleware {
		r.Use(mw)
	}

	r.Get("/", func(c *fiber.Ctx) error {
		sess := session.From(c)
		friends, err := svc.Friends(c.Context(), sess.Viewer.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(friends)
	})

	r.Post("/", func(c *fiber.Ctx) error {
		var body struct {
			FriendID string `json:"friend_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.FriendID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "friend_id required")
		}
		sess := session.From(c)
		if err := svc.AddFriend(c.Context(), sess.Viewer.ID, body.FriendID); err != nil {
			if errors.Is(err, ErrSelfFriend) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		sess := session.From(c)
		if err := svc.RemoveFriend(c.Context(), sess.Viewer.ID, c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
