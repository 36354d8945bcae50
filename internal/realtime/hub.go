package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/metrics"
)

// Filter is a single-column equality predicate on the changed row.
type Filter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

type Subscription struct {
	ID     string  `json:"id"`
	Table  string  `json:"table"`
	Event  string  `json:"event"`
	Filter *Filter `json:"filter,omitempty"`
}

// Matches reports whether ev should be delivered to s.
func (s Subscription) Matches(ev ChangeEvent) bool {
	if s.Table != ev.Table {
		return false
	}
	if s.Event != EventAny && s.Event != ev.Event {
		return false
	}
	if s.Filter == nil {
		return true
	}
	v, ok := ev.row()[s.Filter.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == s.Filter.Value
}

type Client struct {
	ID     string
	UserID uuid.UUID
	Send   chan []byte

	// quit is closed when the hub drops the client. Send is never closed
	// so late writers cannot panic.
	quit chan struct{}

	mu   sync.RWMutex
	subs map[string]Subscription
}

func NewClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, 256),
		quit:   make(chan struct{}),
		subs:   make(map[string]Subscription),
	}
}

// Done is closed once the client has been unregistered.
func (c *Client) Done() <-chan struct{} {
	return c.quit
}

func (c *Client) subscribe(s Subscription) {
	c.mu.Lock()
	c.subs[s.ID] = s
	c.mu.Unlock()
}

func (c *Client) unsubscribe(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[id]; !ok {
		return false
	}
	delete(c.subs, id)
	return true
}

func (c *Client) matching(ev ChangeEvent) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for id, s := range c.subs {
		if s.Matches(ev) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Hub tracks connected clients and routes change events to their
// subscriptions.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	broker  Broker
}

func NewHub(broker Broker) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		broker:  broker,
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	metrics.RealtimeClients.Inc()
	logger.Debug("realtime client registered", "client_id", client.ID, "user_id", client.UserID)
}

func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client.ID)
}

func (h *Hub) removeLocked(id string) {
	if old, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(old.quit)
		metrics.RealtimeClients.Dec()
		logger.Debug("realtime client unregistered", "client_id", id)
	}
}

// Subscribe authorizes s for the client's user and attaches it.
func (h *Hub) Subscribe(client *Client, s Subscription) error {
	if s.Event == "" {
		s.Event = EventAny
	}
	if err := Authorize(client.UserID, s); err != nil {
		return err
	}
	client.subscribe(s)
	return nil
}

func (h *Hub) Unsubscribe(client *Client, id string) bool {
	return client.unsubscribe(id)
}

// Run feeds broker events to Dispatch until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	events, cancel := h.broker.Subscribe(ctx)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Dispatch(ev)
		}
	}
}

// Dispatch delivers ev once per matching subscription. Clients whose send
// buffer is full are dropped.
func (h *Hub) Dispatch(ev ChangeEvent) {
	var slow []string

	h.mu.RLock()
	for id, client := range h.clients {
		for _, subID := range client.matching(ev) {
			payload, err := json.Marshal(changeFrame(subID, ev))
			if err != nil {
				logger.Error("realtime: marshal change", "err", err)
				continue
			}
			select {
			case client.Send <- payload:
			default:
				slow = append(slow, id)
			}
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, id := range slow {
			h.removeLocked(id)
		}
		h.mu.Unlock()
	}
}

// SendToUser pushes a raw notice to every connection of userID.
func (h *Hub) SendToUser(userID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error("realtime: marshal notice", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- payload:
			default:
			}
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func changeFrame(subID string, ev ChangeEvent) Frame {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Frame{
		Type:         FrameChange,
		Subscription: subID,
		Table:        ev.Table,
		Event:        ev.Event,
		Record:       ev.Record,
		Old:          ev.Old,
		At:           &at,
	}
}
