// Package saved keeps a buyer's list of bookmarked sellers.
package saved

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
)

const table = "saved_sellers"

type Service struct {
	DB     *gorm.DB
	Broker realtime.Broker
}

func New(db *gorm.DB, broker realtime.Broker) *Service {
	return &Service{DB: db, Broker: broker}
}

// Save bookmarks sellerID for buyerID. Saving twice returns the existing row.
func (s *Service) Save(ctx context.Context, buyerID, sellerID uuid.UUID) (*models.SavedSeller, error) {
	if buyerID == sellerID {
		return nil, apperr.BadRequest("you cannot save yourself", nil)
	}
	var seller models.Profile
	if err := s.DB.WithContext(ctx).Select("id", "role").First(&seller, "id = ?", sellerID).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Seller", err)
		}
		return nil, apperr.Internal("could not load seller", err)
	}
	if seller.Role != models.RoleSeller {
		return nil, apperr.NotFound("Seller", nil)
	}

	if existing, err := s.find(ctx, buyerID, sellerID); err != nil || existing != nil {
		return existing, err
	}

	row := &models.SavedSeller{BuyerID: buyerID, SellerID: sellerID}
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return s.find(ctx, buyerID, sellerID)
		}
		return nil, apperr.Internal("could not save seller", err)
	}
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventInsert, row, nil))
	return row, nil
}

// Unsave removes the bookmark; removing a missing one is not an error.
func (s *Service) Unsave(ctx context.Context, buyerID, sellerID uuid.UUID) error {
	row, err := s.find(ctx, buyerID, sellerID)
	if err != nil || row == nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(row).Error; err != nil {
		return apperr.Internal("could not remove saved seller", err)
	}
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventDelete, nil, row))
	return nil
}

type ListResult struct {
	Items []models.SavedSeller `json:"items"`
	Meta  services.Meta        `json:"meta"`
}

func (s *Service) List(ctx context.Context, buyerID uuid.UUID, p services.Page) (*ListResult, error) {
	p = p.Normalize()
	q := s.DB.WithContext(ctx).Model(&models.SavedSeller{}).Where("buyer_id = ?", buyerID)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.Internal("could not count saved sellers", err)
	}
	items := []models.SavedSeller{}
	if err := q.Preload("Seller").
		Order("created_at DESC").
		Limit(p.Limit).Offset(p.Offset()).
		Find(&items).Error; err != nil {
		return nil, apperr.Internal("could not list saved sellers", err)
	}
	for i := range items {
		items[i].Seller.Redact()
	}
	return &ListResult{Items: items, Meta: services.NewMeta(p, total)}, nil
}

func (s *Service) find(ctx context.Context, buyerID, sellerID uuid.UUID) (*models.SavedSeller, error) {
	var row models.SavedSeller
	err := s.DB.WithContext(ctx).Where("buyer_id = ? AND seller_id = ?", buyerID, sellerID).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if services.IsNotFound(err) {
		return nil, nil
	}
	return nil, apperr.Internal("could not load saved seller", err)
}
