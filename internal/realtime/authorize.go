package realtime

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUnknownTable = errors.New("realtime: unknown table")
	ErrBadEvent     = errors.New("realtime: event must be INSERT, UPDATE, DELETE or *")
	ErrForbidden    = errors.New("realtime: subscription not allowed")
)

// private lists, per table, the columns a subscriber must pin to their own
// id. Tables absent from the map but present in public are readable by all.
var private = map[string][]string{
	"messages":      {"receiver_id", "sender_id"},
	"bookings":      {"buyer_id", "seller_id"},
	"saved_sellers": {"buyer_id"},
}

var public = map[string]bool{
	"gigs":     true,
	"profiles": true,
	"reviews":  true,
}

// Authorize decides whether userID may hold subscription s.
func Authorize(userID uuid.UUID, s Subscription) error {
	switch s.Event {
	case EventInsert, EventUpdate, EventDelete, EventAny:
	default:
		return ErrBadEvent
	}

	if public[s.Table] {
		return nil
	}
	cols, ok := private[s.Table]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, s.Table)
	}
	if s.Filter == nil || s.Filter.Value != userID.String() {
		return fmt.Errorf("%w: %s needs a filter on your own id", ErrForbidden, s.Table)
	}
	for _, c := range cols {
		if s.Filter.Column == c {
			return nil
		}
	}
	return fmt.Errorf("%w: %s can only be filtered by %v", ErrForbidden, s.Table, cols)
}
