package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const viewerLocal = "stream_viewer"

// RegisterRoutes streams feed snapshots to the viewer resolved by
// authMiddleware. Each connection only sees its own feed topic.
func RegisterRoutes(r fiber.Router, hub *Hub, viewer func(*fiber.Ctx) string, authMiddleware ...fiber.Handler) {
	for _, mw := range authMiddleware {
		r.Use(mw)
	}

	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		id := viewer(c)
		if id == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "unknown viewer")
		}
		c.Locals(viewerLocal, id)
		return c.Next()
	})

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		id, _ := c.Locals(viewerLocal).(string)
		client := hub.Register(FeedTopic(id))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		// Inbound frames are ignored; reading detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
