package session

import (
	"errors"

	"backend-eventhub/internal/auth"
	"backend-eventhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

const localsKey = "session"

// Require resolves the signed-in session for the user_id set by the JWT
// middleware.
func Require(m *Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := auth.UserID(c)
		sess, ok := m.Get(uid)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, ErrNoSession.Error())
		}
		c.Locals(localsKey, sess)
		return c.Next()
	}
}

func From(c *fiber.Ctx) models.UserSession {
	sess, _ := c.Locals(localsKey).(models.UserSession)
	return sess
}

func RegisterRoutes(r fiber.Router, m *Manager, authMiddleware fiber.Handler) {
	r.Post("/", func(c *fiber.Ctx) error {
		var req SignInRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		req.Token = auth.BearerFromHeader(c.Get("Authorization"))
		if req.Token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		sess, err := m.SignIn(c.Context(), req)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				return fiber.NewError(fiber.StatusUnauthorized, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Get("/", authMiddleware, Require(m), func(c *fiber.Ctx) error {
		return c.JSON(From(c))
	})

	r.Delete("/", authMiddleware, func(c *fiber.Ctx) error {
		uid := auth.UserID(c)
		if !m.SignOut(uid) {
			return fiber.NewError(fiber.StatusNotFound, ErrNoSession.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
