package bookings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/booking"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/testutil"
)

type fixture struct {
	svc    *Service
	buyer  *models.Profile
	seller *models.Profile
	gig    *models.Gig
}

func setup(t *testing.T) fixture {
	gdb := testutil.NewDB(t)
	seller := testutil.Profile(t, gdb, models.RoleSeller)
	return fixture{
		svc:    New(gdb, realtime.NewMemoryBroker()),
		buyer:  testutil.Profile(t, gdb, models.RoleBuyer),
		seller: seller,
		gig:    testutil.Gig(t, gdb, seller, 250),
	}
}

func (f fixture) book(t *testing.T) *models.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), f.buyer.ID, CreateInput{GigID: f.gig.ID.String(), Requirements: "make it blue"})
	require.NoError(t, err)
	return b
}

func TestCreateCopiesGig(t *testing.T) {
	f := setup(t)
	b := f.book(t)

	assert.Equal(t, models.BookingPending, b.Status)
	assert.Equal(t, f.seller.ID, b.SellerID)
	assert.EqualValues(t, 250, b.Price)
}

func TestCreateRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.seller.ID, CreateInput{GigID: f.gig.ID.String()})
	assert.True(t, apperr.Is(err, "FORBIDDEN"), "seller cannot book own gig")

	require.NoError(t, f.svc.DB.Model(f.gig).Update("status", models.GigArchived).Error)
	_, err = f.svc.Create(ctx, f.buyer.ID, CreateInput{GigID: f.gig.ID.String()})
	assert.True(t, apperr.Is(err, "CONFLICT"))

	_, err = f.svc.Create(ctx, f.buyer.ID, CreateInput{GigID: uuid.NewString()})
	assert.True(t, apperr.Is(err, "NOT_FOUND"))

	_, err = f.svc.Create(ctx, f.buyer.ID, CreateInput{GigID: "nope"})
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"))
}

func TestCancelNeedsReasonAndPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.book(t)

	_, err := f.svc.Cancel(ctx, f.buyer.ID, b.ID, "too short")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "reason")

	got, err := f.svc.Get(ctx, f.buyer.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, got.Status, "a rejected cancel leaves the booking alone")

	cancelled, err := f.svc.Cancel(ctx, f.buyer.ID, b.ID, "found someone closer to home")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	assert.Equal(t, "found someone closer to home", cancelled.CancelReason)
}

func TestCancelRefusedAfterAccept(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.book(t)

	_, err := f.svc.Transition(ctx, f.seller.ID, b.ID, models.BookingAccepted)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.buyer.ID, b.ID, "changed my mind entirely")
	assert.True(t, apperr.Is(err, "CONFLICT"))

	got, err := f.svc.Get(ctx, f.buyer.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingAccepted, got.Status)
}

func TestTransitionGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.book(t)

	_, err := f.svc.Transition(ctx, f.buyer.ID, b.ID, models.BookingAccepted)
	assert.True(t, apperr.Is(err, "FORBIDDEN"), "buyer cannot accept")

	_, err = f.svc.Transition(ctx, uuid.New(), b.ID, models.BookingAccepted)
	assert.True(t, apperr.Is(err, "NOT_FOUND"), "strangers do not see the booking")

	_, err = f.svc.Transition(ctx, f.seller.ID, b.ID, models.BookingCompleted)
	assert.True(t, apperr.Is(err, "CONFLICT"), "cannot skip states")

	_, err = f.svc.Transition(ctx, f.buyer.ID, b.ID, models.BookingCancelled)
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"), "cancel needs its own action")

	for _, to := range []models.BookingStatus{models.BookingAccepted, models.BookingInProgress} {
		_, err = f.svc.Transition(ctx, f.seller.ID, b.ID, to)
		require.NoError(t, err)
	}
	done, err := f.svc.Transition(ctx, f.buyer.ID, b.ID, models.BookingCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, done.Status)
}

func TestStaleTransitionConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.book(t)

	_, err := f.svc.apply(ctx, f.seller.ID, b.ID, models.BookingRejected, "", func(row *models.Booking, _ booking.Actor) error {
		// another request wins between load and update
		return f.svc.DB.Model(&models.Booking{}).Where("id = ?", row.ID).Update("status", models.BookingAccepted).Error
	})
	assert.True(t, apperr.Is(err, "CONFLICT"))

	got, err := f.svc.Get(ctx, f.seller.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingAccepted, got.Status)
}

func TestListAndDashboard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.book(t)
	f.book(t)

	for _, to := range []models.BookingStatus{models.BookingAccepted, models.BookingInProgress, models.BookingCompleted} {
		_, err := f.svc.Transition(ctx, f.seller.ID, first.ID, to)
		require.NoError(t, err)
	}

	mine, err := f.svc.ListForUser(ctx, f.buyer.ID, ListFilter{As: "buyer"})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 2)

	pending, err := f.svc.ListForUser(ctx, f.seller.ID, ListFilter{As: "seller", Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, pending.Items, 1)

	none, err := f.svc.ListForUser(ctx, f.seller.ID, ListFilter{As: "buyer"})
	require.NoError(t, err)
	assert.Empty(t, none.Items)

	_, err = f.svc.ListForUser(ctx, f.seller.ID, ListFilter{Status: "lost"})
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"))

	d, err := f.svc.SellerDashboard(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 250, d.TotalEarnings)
	assert.EqualValues(t, 1, d.ActiveBookings)
	assert.EqualValues(t, 1, d.Counts[models.BookingCompleted])
	assert.EqualValues(t, 1, d.PublishedGigs)
}

func TestCounterpartContactIsHidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.book(t)

	asBuyer, err := f.svc.Get(ctx, f.buyer.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, asBuyer.Seller)
	assert.Empty(t, asBuyer.Seller.Email)
	assert.Equal(t, f.buyer.Email, asBuyer.Buyer.Email)

	asSeller, err := f.svc.Get(ctx, f.seller.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, asSeller.Buyer)
	assert.Empty(t, asSeller.Buyer.Email)
	assert.Equal(t, f.seller.Email, asSeller.Seller.Email)

	list, err := f.svc.ListForUser(ctx, f.seller.ID, ListFilter{As: "seller"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Empty(t, list.Items[0].Buyer.Email)
	assert.Empty(t, list.Items[0].Buyer.Phone)
}
