package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type RecoverRequest struct {
	UserID string `json:"user_id"`
	Secret string `json:"secret"`
}

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/recover", func(c *fiber.Ctx) error {
		var req RecoverRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		token, err := svc.Recover(req.UserID, req.Secret)
		if err != nil {
			if errors.Is(err, ErrRecoveryDisabled) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.JSON(fiber.Map{"access_token": token, "token_type": "Bearer"})
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := BearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})
}
