package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	EventAny    = "*"
)

// ChangeEvent describes one row write. Record is the row after the write
// (empty for deletes), Old the row before it when known.
type ChangeEvent struct {
	Table  string         `json:"table"`
	Event  string         `json:"event"`
	Record map[string]any `json:"record,omitempty"`
	Old    map[string]any `json:"old,omitempty"`
	At     time.Time      `json:"at"`
}

// row returns the side of the event filters are evaluated against.
func (e ChangeEvent) row() map[string]any {
	if e.Event == EventDelete || len(e.Record) == 0 {
		return e.Old
	}
	return e.Record
}

// NewChange builds an event from model values. record and old may be nil.
func NewChange(table, event string, record, old any) ChangeEvent {
	return ChangeEvent{
		Table:  table,
		Event:  event,
		Record: toMap(record),
		Old:    toMap(old),
		At:     time.Now().UTC(),
	}
}

// Emit publishes ev on b. A nil broker is a no-op and failures are only
// logged: the row write has already committed.
func Emit(ctx context.Context, b Broker, ev ChangeEvent) {
	if b == nil {
		return
	}
	if err := b.Publish(ctx, ev); err != nil {
		logger.WithCtx(ctx).Warn("realtime publish failed", "table", ev.Table, "event", ev.Event, "err", err)
	}
}

func toMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
