// Package reviews stores buyer reviews of completed bookings and keeps the
// seller's profile rating in step with them.
package reviews

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/validation"
)

const table = "reviews"

type Service struct {
	DB     *gorm.DB
	Broker realtime.Broker
}

func New(db *gorm.DB, broker realtime.Broker) *Service {
	return &Service{DB: db, Broker: broker}
}

type CreateInput struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// Create records reviewerID's review of a completed booking. Only the buyer
// may review, and only once per booking.
func (s *Service) Create(ctx context.Context, reviewerID, bookingID uuid.UUID, in CreateInput) (*models.Review, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var b models.Booking
	if err := s.DB.WithContext(ctx).First(&b, "id = ?", bookingID).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Booking", err)
		}
		return nil, apperr.Internal("could not load booking", err)
	}
	if b.BuyerID != reviewerID {
		if b.SellerID == reviewerID {
			return nil, apperr.Forbidden("only the buyer can review a booking")
		}
		return nil, apperr.NotFound("Booking", nil)
	}
	if b.Status != models.BookingCompleted {
		return nil, apperr.Conflict("only completed bookings can be reviewed")
	}

	r := &models.Review{
		BookingID:  b.ID,
		ReviewerID: reviewerID,
		ReviewedID: b.SellerID,
		Rating:     in.Rating,
		Comment:    in.Comment,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return recompute(tx, b.SellerID)
	})
	if err != nil {
		if services.IsUniqueViolation(err) {
			return nil, apperr.Conflict("this booking has already been reviewed")
		}
		return nil, apperr.Internal("could not save review", err)
	}

	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventInsert, r, nil))
	return r, nil
}

type ListResult struct {
	Items []models.Review `json:"items"`
	Meta  services.Meta   `json:"meta"`
}

// ListForUser pages through the reviews a profile has received, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, p services.Page) (*ListResult, error) {
	p = p.Normalize()
	q := s.DB.WithContext(ctx).Model(&models.Review{}).Where("reviewed_id = ?", userID)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.Internal("could not count reviews", err)
	}
	items := []models.Review{}
	if err := q.Preload("Reviewer").
		Order("created_at DESC").
		Limit(p.Limit).Offset(p.Offset()).
		Find(&items).Error; err != nil {
		return nil, apperr.Internal("could not list reviews", err)
	}
	for i := range items {
		items[i].Reviewer.Redact()
	}
	return &ListResult{Items: items, Meta: services.NewMeta(p, total)}, nil
}

// Summary is the rating breakdown shown on a profile.
type Summary struct {
	UserID       uuid.UUID     `json:"user_id"`
	Average      float64       `json:"average"`
	TotalReviews int64         `json:"total_reviews"`
	Histogram    map[int]int64 `json:"histogram"`
}

func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	sum := &Summary{UserID: userID, Histogram: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}

	var rows []struct {
		Rating int
		N      int64
	}
	if err := s.DB.WithContext(ctx).Model(&models.Review{}).
		Select("rating, COUNT(*) AS n").
		Where("reviewed_id = ?", userID).
		Group("rating").
		Scan(&rows).Error; err != nil {
		return nil, apperr.Internal("could not summarise reviews", err)
	}

	var weighted int64
	for _, r := range rows {
		sum.Histogram[r.Rating] = r.N
		sum.TotalReviews += r.N
		weighted += int64(r.Rating) * r.N
	}
	if sum.TotalReviews > 0 {
		sum.Average = round2(float64(weighted) / float64(sum.TotalReviews))
	}
	return sum, nil
}

// SyncRatings recomputes rating and rating_count on every profile that has
// reviews or still carries a stale rating. It returns the number of profiles
// written.
func (s *Service) SyncRatings(ctx context.Context) (int, error) {
	db := s.DB.WithContext(ctx)

	var ids []uuid.UUID
	if err := db.Model(&models.Review{}).Distinct("reviewed_id").Pluck("reviewed_id", &ids).Error; err != nil {
		return 0, apperr.Internal("could not list reviewed profiles", err)
	}
	var stale []uuid.UUID
	q := db.Model(&models.Profile{}).Where("rating_count > 0")
	if len(ids) > 0 {
		q = q.Where("id NOT IN ?", ids)
	}
	if err := q.Pluck("id", &stale).Error; err != nil {
		return 0, apperr.Internal("could not list rated profiles", err)
	}

	n := 0
	for _, id := range append(ids, stale...) {
		if err := recompute(db, id); err != nil {
			return n, apperr.Internal("could not update rating", err)
		}
		n++
	}
	return n, nil
}

// StartRatingSyncWorker runs SyncRatings every interval until ctx is done.
func (s *Service) StartRatingSyncWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.SyncRatings(ctx)
				if err != nil {
					logger.Error("rating sync failed", "err", err)
					continue
				}
				logger.Debug("rating sync done", "profiles", n)
			}
		}
	}()
}

func recompute(tx *gorm.DB, userID uuid.UUID) error {
	var agg struct {
		Avg float64
		N   int64
	}
	if err := tx.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS n").
		Where("reviewed_id = ?", userID).
		Scan(&agg).Error; err != nil {
		return err
	}
	return tx.Model(&models.Profile{}).Where("id = ?", userID).
		Updates(map[string]any{"rating": round2(agg.Avg), "rating_count": agg.N}).Error
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
