// Package bookings creates bookings and moves them through their lifecycle.
// Every status change is checked by the booking package and applied with a
// conditional update, so two racing transitions cannot both win.
package bookings

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/booking"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/metrics"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/validation"
)

const table = "bookings"

type Service struct {
	DB     *gorm.DB
	Broker realtime.Broker
}

func New(db *gorm.DB, broker realtime.Broker) *Service {
	return &Service{DB: db, Broker: broker}
}

type CreateInput struct {
	GigID        string `json:"gig_id" validate:"required,uuid"`
	Requirements string `json:"requirements" validate:"max=5000"`
}

// Create books a published gig for buyerID at the gig's current price.
func (s *Service) Create(ctx context.Context, buyerID uuid.UUID, in CreateInput) (*models.Booking, error) {
	in.GigID = strings.TrimSpace(in.GigID)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var gig models.Gig
	if err := s.DB.WithContext(ctx).First(&gig, "id = ?", in.GigID).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Gig", err)
		}
		return nil, apperr.Internal("could not load gig", err)
	}
	if gig.Status != models.GigPublished {
		return nil, apperr.Conflict("gig is not available for booking")
	}
	if gig.SellerID == buyerID {
		return nil, apperr.Forbidden("you cannot book your own gig")
	}

	b := &models.Booking{
		GigID:        gig.ID,
		BuyerID:      buyerID,
		SellerID:     gig.SellerID,
		Price:        gig.Price,
		Requirements: strings.TrimSpace(in.Requirements),
		Status:       models.BookingPending,
	}
	if err := s.DB.WithContext(ctx).Create(b).Error; err != nil {
		return nil, apperr.Internal("could not create booking", err)
	}
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventInsert, b, nil))
	return b, nil
}

// Get returns the booking if userID is one of its parties.
func (s *Service) Get(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := s.DB.WithContext(ctx).
		Preload("Gig").Preload("Buyer").Preload("Seller").
		First(&b, "id = ?", bookingID).Error
	if err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Booking", err)
		}
		return nil, apperr.Internal("could not load booking", err)
	}
	if booking.ActorOf(&b, userID) == booking.ActorNone {
		return nil, apperr.NotFound("Booking", nil)
	}
	redactCounterpart(&b, userID)
	return &b, nil
}

// redactCounterpart hides the other party's contact details from userID.
func redactCounterpart(b *models.Booking, userID uuid.UUID) {
	if b.BuyerID != userID {
		b.Buyer.Redact()
	}
	if b.SellerID != userID {
		b.Seller.Redact()
	}
}

type ListFilter struct {
	As     string // buyer | seller
	Status string
	services.Page
}

type ListResult struct {
	Items []models.Booking `json:"items"`
	Meta  services.Meta    `json:"meta"`
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, f ListFilter) (*ListResult, error) {
	f.Page = f.Page.Normalize()
	q := s.DB.WithContext(ctx).Model(&models.Booking{})

	switch f.As {
	case "buyer":
		q = q.Where("buyer_id = ?", userID)
	case "seller":
		q = q.Where("seller_id = ?", userID)
	case "":
		q = q.Where("(buyer_id = ? OR seller_id = ?)", userID, userID)
	default:
		return nil, apperr.Field("as", "must be one of: buyer seller")
	}
	if f.Status != "" {
		if !booking.ValidStatus(models.BookingStatus(f.Status)) {
			return nil, apperr.Field("status", "is not a booking status")
		}
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.Internal("could not count bookings", err)
	}
	items := []models.Booking{}
	err := q.Preload("Gig").Preload("Buyer").Preload("Seller").
		Order("created_at DESC").
		Limit(f.Limit).Offset(f.Page.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, apperr.Internal("could not list bookings", err)
	}
	for i := range items {
		redactCounterpart(&items[i], userID)
	}
	return &ListResult{Items: items, Meta: services.NewMeta(f.Page, total)}, nil
}

// Transition moves a booking to status "to" on behalf of userID. Cancels go
// through Cancel so they always carry a reason.
func (s *Service) Transition(ctx context.Context, userID, bookingID uuid.UUID, to models.BookingStatus) (*models.Booking, error) {
	if to == models.BookingCancelled {
		return nil, apperr.Field("status", "use the cancel action with a reason")
	}
	if !booking.ValidStatus(to) {
		return nil, apperr.Field("status", "is not a booking status")
	}
	return s.apply(ctx, userID, bookingID, to, "", func(b *models.Booking, actor booking.Actor) error {
		return booking.Check(b.Status, to, actor)
	})
}

// Cancel lets the buyer withdraw a pending booking.
func (s *Service) Cancel(ctx context.Context, userID, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	reason = strings.TrimSpace(reason)
	return s.apply(ctx, userID, bookingID, models.BookingCancelled, reason, func(b *models.Booking, actor booking.Actor) error {
		if err := booking.ValidateCancel(b.Status, reason); err != nil {
			return err
		}
		return booking.Check(b.Status, models.BookingCancelled, actor)
	})
}

func (s *Service) apply(
	ctx context.Context,
	userID, bookingID uuid.UUID,
	to models.BookingStatus,
	reason string,
	check func(*models.Booking, booking.Actor) error,
) (*models.Booking, error) {
	var b models.Booking
	if err := s.DB.WithContext(ctx).First(&b, "id = ?", bookingID).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Booking", err)
		}
		return nil, apperr.Internal("could not load booking", err)
	}
	actor := booking.ActorOf(&b, userID)
	if actor == booking.ActorNone {
		return nil, apperr.NotFound("Booking", nil)
	}
	if err := check(&b, actor); err != nil {
		return nil, fsmError(err)
	}

	from := b.Status
	updates := map[string]any{"status": to}
	if to == models.BookingCancelled {
		updates["cancel_reason"] = reason
	}
	res := s.DB.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", b.ID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, apperr.Internal("could not update booking", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("booking was changed by someone else; reload and try again")
	}

	old := b
	b.Status = to
	if to == models.BookingCancelled {
		b.CancelReason = reason
	}
	if err := s.DB.WithContext(ctx).First(&b, "id = ?", b.ID).Error; err != nil {
		return nil, apperr.Internal("could not reload booking", err)
	}

	metrics.BookingTransitions.WithLabelValues(string(from), string(to)).Inc()
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventUpdate, b, old))
	return &b, nil
}

func fsmError(err error) error {
	switch {
	case errors.Is(err, booking.ErrReasonTooShort):
		return apperr.Field("reason", strings.TrimPrefix(err.Error(), "booking: "))
	case errors.Is(err, booking.ErrNotCancellable), errors.Is(err, booking.ErrIllegalTransition):
		return apperr.Conflict(strings.TrimPrefix(err.Error(), "booking: "))
	case errors.Is(err, booking.ErrNotAllowed), errors.Is(err, booking.ErrNotParticipant):
		return apperr.Forbidden(strings.TrimPrefix(err.Error(), "booking: "))
	default:
		return apperr.Internal("booking check failed", err)
	}
}

// Dashboard summarises a seller's bookings and inbox.
type Dashboard struct {
	Counts         map[models.BookingStatus]int64 `json:"counts"`
	ActiveBookings int64                          `json:"active_bookings"`
	TotalEarnings  int64                          `json:"total_earnings"`
	UnreadMessages int64                          `json:"unread_messages"`
	PublishedGigs  int64                          `json:"published_gigs"`
}

func (s *Service) SellerDashboard(ctx context.Context, sellerID uuid.UUID) (*Dashboard, error) {
	d := &Dashboard{Counts: map[models.BookingStatus]int64{}}
	db := s.DB.WithContext(ctx)

	type row struct {
		Status models.BookingStatus
		N      int64
	}
	var rows []row
	if err := db.Model(&models.Booking{}).
		Select("status, COUNT(*) AS n").
		Where("seller_id = ?", sellerID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, apperr.Internal("could not count bookings", err)
	}
	for _, r := range rows {
		d.Counts[r.Status] = r.N
		if !booking.IsTerminal(r.Status) {
			d.ActiveBookings += r.N
		}
	}

	if err := db.Model(&models.Booking{}).
		Where("seller_id = ? AND status = ?", sellerID, models.BookingCompleted).
		Select("COALESCE(SUM(price), 0)").
		Scan(&d.TotalEarnings).Error; err != nil {
		return nil, apperr.Internal("could not sum earnings", err)
	}
	if err := db.Model(&models.Message{}).
		Where("receiver_id = ? AND read_at IS NULL", sellerID).
		Count(&d.UnreadMessages).Error; err != nil {
		return nil, apperr.Internal("could not count messages", err)
	}
	if err := db.Model(&models.Gig{}).
		Where("seller_id = ? AND status = ?", sellerID, models.GigPublished).
		Count(&d.PublishedGigs).Error; err != nil {
		return nil, apperr.Internal("could not count gigs", err)
	}
	return d, nil
}
