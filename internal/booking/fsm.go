// Package booking owns the booking lifecycle: which status changes are legal
// and which party may perform them. Every surface that changes a booking's
// status asks this package first.
package booking

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
)

// CancelReasonMinLen is the minimum length, in characters, of a buyer's
// cancellation reason.
const CancelReasonMinLen = 10

type Actor string

const (
	ActorNone   Actor = "none"
	ActorBuyer  Actor = "buyer"
	ActorSeller Actor = "seller"
)

var (
	ErrIllegalTransition = errors.New("booking: illegal status transition")
	ErrNotAllowed        = errors.New("booking: actor may not perform this transition")
	ErrNotParticipant    = errors.New("booking: user is not a participant")
	ErrReasonTooShort    = fmt.Errorf("booking: cancellation reason must be at least %d characters", CancelReasonMinLen)
	ErrNotCancellable    = errors.New("booking: only pending bookings can be cancelled")
)

type edge struct {
	from models.BookingStatus
	to   models.BookingStatus
}

var transitions = map[edge][]Actor{
	{models.BookingPending, models.BookingAccepted}:     {ActorSeller},
	{models.BookingPending, models.BookingRejected}:     {ActorSeller},
	{models.BookingPending, models.BookingCancelled}:    {ActorBuyer},
	{models.BookingAccepted, models.BookingInProgress}:  {ActorSeller},
	{models.BookingInProgress, models.BookingCompleted}: {ActorBuyer, ActorSeller},
}

// order fixes the listing order of Allowed.
var order = []models.BookingStatus{
	models.BookingAccepted,
	models.BookingRejected,
	models.BookingInProgress,
	models.BookingCompleted,
	models.BookingCancelled,
}

// ActorOf returns the role userID plays on b.
func ActorOf(b *models.Booking, userID uuid.UUID) Actor {
	switch userID {
	case b.SellerID:
		return ActorSeller
	case b.BuyerID:
		return ActorBuyer
	default:
		return ActorNone
	}
}

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s models.BookingStatus) bool {
	switch s {
	case models.BookingPending, models.BookingAccepted, models.BookingRejected,
		models.BookingInProgress, models.BookingCompleted, models.BookingCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.BookingStatus) bool {
	for e := range transitions {
		if e.from == s {
			return false
		}
	}
	return true
}

// Check returns nil when actor may move a booking from -> to.
func Check(from, to models.BookingStatus, actor Actor) error {
	if actor == ActorNone {
		return ErrNotParticipant
	}
	actors, ok := transitions[edge{from, to}]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	for _, a := range actors {
		if a == actor {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot move %s -> %s", ErrNotAllowed, actor, from, to)
}

// Allowed lists the statuses actor may move a booking in status s to.
func Allowed(s models.BookingStatus, actor Actor) []models.BookingStatus {
	var out []models.BookingStatus
	for _, to := range order {
		if Check(s, to, actor) == nil {
			out = append(out, to)
		}
	}
	return out
}

// ValidateCancel checks a buyer cancellation request. The reason is checked
// before the status so a short reason is always reported as a field error.
func ValidateCancel(status models.BookingStatus, reason string) error {
	if err := ValidateCancelReason(reason); err != nil {
		return err
	}
	if status != models.BookingPending {
		return ErrNotCancellable
	}
	return nil
}

// ValidateCancelReason checks only the reason, for callers that do not know
// the booking's current status.
func ValidateCancelReason(reason string) error {
	if utf8.RuneCountInString(strings.TrimSpace(reason)) < CancelReasonMinLen {
		return ErrReasonTooShort
	}
	return nil
}
