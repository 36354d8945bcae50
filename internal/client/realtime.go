package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 25 * time.Second
)

var ErrClosed = errors.New("client: realtime connection closed")

// Handler receives change events for one subscription. Handlers run on the
// read loop and must not block.
type Handler func(realtime.ChangeEvent)

// Realtime is one websocket connection to /ws/realtime carrying any number
// of subscriptions.
type Realtime struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string]Handler
	acks     map[string]chan error
	err      error

	done chan struct{}
	once sync.Once
}

// Dial opens the realtime connection using c's token.
func (c *Client) Dial(ctx context.Context) (*Realtime, error) {
	u := c.BaseURL + "/ws/realtime"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, res, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if res != nil {
			return nil, &APIError{Status: res.StatusCode, Message: "realtime handshake failed"}
		}
		return nil, err
	}

	r := &Realtime{
		conn:     conn,
		handlers: make(map[string]Handler),
		acks:     make(map[string]chan error),
		done:     make(chan struct{}),
	}
	go r.readLoop()
	go r.pingLoop()
	return r, nil
}

// Subscribe registers h for changes on table matching event ("*" for any)
// and the optional equality filter. It waits for the server to accept.
func (r *Realtime) Subscribe(ctx context.Context, table, event string, filter *realtime.Filter, h Handler) (string, error) {
	id := uuid.NewString()
	ack := make(chan error, 1)

	r.mu.Lock()
	if r.err != nil {
		r.mu.Unlock()
		return "", r.err
	}
	r.handlers[id] = h
	r.acks[id] = ack
	r.mu.Unlock()

	if err := r.write(realtime.Frame{Type: realtime.FrameSubscribe, ID: id, Table: table, Event: event, Filter: filter}); err != nil {
		r.forget(id)
		return "", err
	}

	select {
	case err := <-ack:
		if err != nil {
			r.forget(id)
			return "", err
		}
		return id, nil
	case <-ctx.Done():
		r.forget(id)
		return "", ctx.Err()
	case <-r.done:
		return "", r.closeErr()
	}
}

func (r *Realtime) Unsubscribe(id string) error {
	r.forget(id)
	return r.write(realtime.Frame{Type: realtime.FrameUnsubscribe, ID: id})
}

// Done is closed when the connection ends.
func (r *Realtime) Done() <-chan struct{} {
	return r.done
}

// Err reports why the connection ended, nil while it is open.
func (r *Realtime) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Realtime) Close() error {
	r.writeMu.Lock()
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	r.writeMu.Unlock()
	r.shutdown(ErrClosed)
	return r.conn.Close()
}

func (r *Realtime) readLoop() {
	for {
		var f realtime.Frame
		if err := r.conn.ReadJSON(&f); err != nil {
			r.shutdown(err)
			return
		}
		switch f.Type {
		case realtime.FrameChange:
			r.mu.Lock()
			h := r.handlers[f.Subscription]
			r.mu.Unlock()
			if h == nil {
				continue
			}
			ev := realtime.ChangeEvent{Table: f.Table, Event: f.Event, Record: f.Record, Old: f.Old}
			if f.At != nil {
				ev.At = *f.At
			}
			h(ev)
		case realtime.FrameSubscribed:
			r.ack(f.ID, nil)
		case realtime.FrameError:
			if f.ID != "" {
				r.ack(f.ID, errors.New("realtime: "+f.Message))
			}
		}
	}
}

func (r *Realtime) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.write(realtime.Frame{Type: realtime.FramePing}); err != nil {
				return
			}
		case <-r.done:
			return
		}
	}
}

func (r *Realtime) write(f realtime.Frame) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteJSON(f)
}

func (r *Realtime) ack(id string, err error) {
	r.mu.Lock()
	ch := r.acks[id]
	delete(r.acks, id)
	r.mu.Unlock()
	if ch != nil {
		ch <- err
	}
}

func (r *Realtime) forget(id string) {
	r.mu.Lock()
	delete(r.handlers, id)
	delete(r.acks, id)
	r.mu.Unlock()
}

func (r *Realtime) shutdown(err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(r.done)
	})
}

func (r *Realtime) closeErr() error {
	if err := r.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// Decode converts an event record into T, typically a model struct.
func Decode[T any](record map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(record)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
