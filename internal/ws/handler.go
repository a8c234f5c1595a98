package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const filterLocal = "ws_events"

func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		filter, _ := c.Locals(filterLocal).(map[EventType]bool)

		client := &Client{
			hub:    hub,
			conn:   c,
			filter: filter,
			send:   make(chan []byte, 256),
		}

		if !hub.subscribe(client) {
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// UpgradeMiddleware rejects plain HTTP requests and reads the optional
// ?events=a,b subscription filter.
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			if filter := ParseFilter(c.Query("events")); filter != nil {
				c.Locals(filterLocal, filter)
			}
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}
