package ws

import (
	"github.com/gofiber/websocket/v2"
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	filter map[EventType]bool
	send   chan []byte
}

func (c *Client) wants(t EventType) bool {
	return c.filter == nil || c.filter[t]
}

// ReadPump drains the connection until the peer goes away. Subscribers
// never send anything meaningful.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unsubscribe(c)
		_ = c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
