package booking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
)

func TestActorOf(t *testing.T) {
	b := &models.Booking{BuyerID: uuid.New(), SellerID: uuid.New()}

	assert.Equal(t, ActorBuyer, ActorOf(b, b.BuyerID))
	assert.Equal(t, ActorSeller, ActorOf(b, b.SellerID))
	assert.Equal(t, ActorNone, ActorOf(b, uuid.New()))
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		from    models.BookingStatus
		to      models.BookingStatus
		actor   Actor
		wantErr error
	}{
		{"seller accepts", models.BookingPending, models.BookingAccepted, ActorSeller, nil},
		{"seller rejects", models.BookingPending, models.BookingRejected, ActorSeller, nil},
		{"buyer cancels", models.BookingPending, models.BookingCancelled, ActorBuyer, nil},
		{"seller starts", models.BookingAccepted, models.BookingInProgress, ActorSeller, nil},
		{"buyer completes", models.BookingInProgress, models.BookingCompleted, ActorBuyer, nil},
		{"seller completes", models.BookingInProgress, models.BookingCompleted, ActorSeller, nil},
		{"buyer cannot accept", models.BookingPending, models.BookingAccepted, ActorBuyer, ErrNotAllowed},
		{"seller cannot cancel", models.BookingPending, models.BookingCancelled, ActorSeller, ErrNotAllowed},
		{"no skipping to completed", models.BookingAccepted, models.BookingCompleted, ActorSeller, ErrIllegalTransition},
		{"accepted cannot be cancelled", models.BookingAccepted, models.BookingCancelled, ActorBuyer, ErrIllegalTransition},
		{"terminal stays terminal", models.BookingCompleted, models.BookingInProgress, ActorSeller, ErrIllegalTransition},
		{"stranger", models.BookingPending, models.BookingAccepted, ActorNone, ErrNotParticipant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.from, tt.to, tt.actor)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAllowed(t *testing.T) {
	assert.Equal(t,
		[]models.BookingStatus{models.BookingAccepted, models.BookingRejected},
		Allowed(models.BookingPending, ActorSeller))
	assert.Equal(t,
		[]models.BookingStatus{models.BookingCancelled},
		Allowed(models.BookingPending, ActorBuyer))
	assert.Empty(t, Allowed(models.BookingCancelled, ActorBuyer))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.BookingCompleted))
	assert.True(t, IsTerminal(models.BookingRejected))
	assert.True(t, IsTerminal(models.BookingCancelled))
	assert.False(t, IsTerminal(models.BookingPending))
	assert.False(t, IsTerminal(models.BookingInProgress))
}

func TestValidateCancel(t *testing.T) {
	assert.NoError(t, ValidateCancel(models.BookingPending, "plans changed, sorry"))

	// exactly ten characters is enough
	assert.NoError(t, ValidateCancel(models.BookingPending, "0123456789"))

	assert.ErrorIs(t, ValidateCancel(models.BookingPending, "too short"), ErrReasonTooShort)
	assert.ErrorIs(t, ValidateCancel(models.BookingPending, "   short    "), ErrReasonTooShort)
	assert.ErrorIs(t, ValidateCancel(models.BookingAccepted, "plans changed, sorry"), ErrNotCancellable)

	// a short reason wins over a wrong status
	assert.ErrorIs(t, ValidateCancel(models.BookingAccepted, "no"), ErrReasonTooShort)
}

func TestValidateCancelCountsRunes(t *testing.T) {
	assert.NoError(t, ValidateCancel(models.BookingPending, "ありがとうございました"))
}
