package realtime

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
)

const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"

	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FrameChange       = "change"
	FrameError        = "error"
	FramePong         = "pong"
)

const pingPeriod = 30 * time.Second

// Frame is the single envelope used in both directions on /ws/realtime.
type Frame struct {
	Type string `json:"type"`

	// subscribe / unsubscribe / subscribed / error
	ID     string  `json:"id,omitempty"`
	Filter *Filter `json:"filter,omitempty"`

	// change
	Subscription string         `json:"subscription,omitempty"`
	Table        string         `json:"table,omitempty"`
	Event        string         `json:"event,omitempty"`
	Record       map[string]any `json:"record,omitempty"`
	Old          map[string]any `json:"old,omitempty"`
	At           *time.Time     `json:"at,omitempty"`

	Message string `json:"message,omitempty"`
}

// Upgrade rejects plain HTTP requests on the websocket route. It must run
// after the JWT middleware so "userId" is set.
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler serves one websocket connection for the authenticated user.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		uid, _ := c.Locals("userId").(string)
		userID, err := uuid.Parse(uid)
		if err != nil {
			_ = c.WriteJSON(Frame{Type: FrameError, Message: "unauthorized"})
			_ = c.Close()
			return
		}

		client := NewClient(userID)
		h.RegisterClient(client)
		defer h.UnregisterClient(client)

		done := make(chan struct{})
		defer close(done)
		go writeLoop(c, client, done)

		for {
			var in Frame
			if err := c.ReadJSON(&in); err != nil {
				logger.Debug("realtime read ended", "client_id", client.ID, "err", err)
				return
			}
			reply := h.handleFrame(client, in)
			b, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			select {
			case client.Send <- b:
			case <-client.Done():
				return
			}
		}
	})
}

// handleFrame applies one client frame and returns the reply.
func (h *Hub) handleFrame(client *Client, in Frame) Frame {
	switch in.Type {
	case FrameSubscribe:
		if in.ID == "" {
			return Frame{Type: FrameError, Message: "subscribe needs an id"}
		}
		sub := Subscription{ID: in.ID, Table: in.Table, Event: in.Event, Filter: in.Filter}
		if err := h.Subscribe(client, sub); err != nil {
			return Frame{Type: FrameError, ID: in.ID, Message: err.Error()}
		}
		return Frame{Type: FrameSubscribed, ID: in.ID}
	case FrameUnsubscribe:
		if !h.Unsubscribe(client, in.ID) {
			return Frame{Type: FrameError, ID: in.ID, Message: "unknown subscription"}
		}
		return Frame{Type: FrameUnsubscribed, ID: in.ID}
	case FramePing:
		return Frame{Type: FramePong}
	default:
		return Frame{Type: FrameError, Message: "unknown frame type " + in.Type}
	}
}

func writeLoop(c *websocket.Conn, client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-client.Send:
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("realtime write error", "client_id", client.ID, "err", err)
				return
			}
		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.Done():
			// dropped by the hub
			_ = c.WriteMessage(websocket.CloseMessage, []byte{})
			_ = c.Close()
			return
		case <-done:
			return
		}
	}
}
