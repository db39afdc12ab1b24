package websocket

import (
	"time"

	gorillaws "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one subscriber connection. Subscribers only receive; anything
// they send is read and discarded to keep the pong handler running.
type Client struct {
	hub   *Hub
	conn  *gorillaws.Conn
	topic string
	send  chan *Message
}

// NewClient creates a client subscribed to topic
func NewClient(hub *Hub, conn *gorillaws.Conn, topic string) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		topic: topic,
		send:  make(chan *Message, 64),
	}
}

// ReadPump reads until the connection fails, then unregisters the client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read failed", "topic", c.topic, "error", err)
			}
			return
		}
	}
}

// WritePump forwards queued messages and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(gorillaws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
