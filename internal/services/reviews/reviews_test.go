package reviews

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
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
		gig:    testutil.Gig(t, gdb, seller, 100),
	}
}

func (f fixture) booking(t *testing.T, status models.BookingStatus) *models.Booking {
	t.Helper()
	b := &models.Booking{GigID: f.gig.ID, BuyerID: f.buyer.ID, SellerID: f.seller.ID, Price: f.gig.Price, Status: status}
	require.NoError(t, f.svc.DB.Create(b).Error)
	return b
}

func TestCreateUpdatesSellerRating(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.buyer.ID, f.booking(t, models.BookingCompleted).ID, CreateInput{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	r, err := f.svc.Create(ctx, f.buyer.ID, f.booking(t, models.BookingCompleted).ID, CreateInput{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, f.seller.ID, r.ReviewedID)

	var seller models.Profile
	require.NoError(t, f.svc.DB.First(&seller, "id = ?", f.seller.ID).Error)
	assert.InDelta(t, 4.5, seller.Rating, 0.001)
	assert.EqualValues(t, 2, seller.RatingCount)
}

func TestCreateRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	done := f.booking(t, models.BookingCompleted)

	_, err := f.svc.Create(ctx, f.buyer.ID, done.ID, CreateInput{Rating: 6})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "rating")

	_, err = f.svc.Create(ctx, f.buyer.ID, done.ID, CreateInput{Rating: 3, Comment: strings.Repeat("x", 1001)})
	appErr, ok = apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "comment")

	_, err = f.svc.Create(ctx, f.seller.ID, done.ID, CreateInput{Rating: 3})
	assert.True(t, apperr.Is(err, "FORBIDDEN"))

	_, err = f.svc.Create(ctx, f.buyer.ID, f.booking(t, models.BookingInProgress).ID, CreateInput{Rating: 3})
	assert.True(t, apperr.Is(err, "CONFLICT"))

	_, err = f.svc.Create(ctx, f.buyer.ID, done.ID, CreateInput{Rating: 3})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.buyer.ID, done.ID, CreateInput{Rating: 1})
	assert.True(t, apperr.Is(err, "CONFLICT"), "one review per booking")
}

func TestSummaryAndList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, rating := range []int{5, 5, 3} {
		_, err := f.svc.Create(ctx, f.buyer.ID, f.booking(t, models.BookingCompleted).ID, CreateInput{Rating: rating})
		require.NoError(t, err)
	}

	sum, err := f.svc.Summary(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum.TotalReviews)
	assert.InDelta(t, 4.33, sum.Average, 0.001)
	assert.EqualValues(t, 2, sum.Histogram[5])
	assert.EqualValues(t, 0, sum.Histogram[1])

	page, err := f.svc.ListForUser(ctx, f.seller.ID, services.Page{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.EqualValues(t, 3, page.Meta.TotalItems)
	require.NotNil(t, page.Items[0].Reviewer)
	assert.Empty(t, page.Items[0].Reviewer.Email)
}

func TestSyncRatingsRepairsDrift(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.buyer.ID, f.booking(t, models.BookingCompleted).ID, CreateInput{Rating: 2})
	require.NoError(t, err)

	// drift both the reviewed seller and an unreviewed profile
	require.NoError(t, f.svc.DB.Model(f.seller).Updates(map[string]any{"rating": 5, "rating_count": 9}).Error)
	require.NoError(t, f.svc.DB.Model(f.buyer).Updates(map[string]any{"rating": 3, "rating_count": 1}).Error)

	n, err := f.svc.SyncRatings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var seller, buyer models.Profile
	require.NoError(t, f.svc.DB.First(&seller, "id = ?", f.seller.ID).Error)
	require.NoError(t, f.svc.DB.First(&buyer, "id = ?", f.buyer.ID).Error)
	assert.InDelta(t, 2.0, seller.Rating, 0.001)
	assert.EqualValues(t, 1, seller.RatingCount)
	assert.Zero(t, buyer.Rating)
	assert.Zero(t, buyer.RatingCount)
}
