package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SavedSeller struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BuyerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_saved_pair,priority:1" json:"buyer_id"`
	SellerID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_saved_pair,priority:2;index" json:"seller_id"`
	CreatedAt time.Time `json:"created_at"`

	Seller *Profile `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

func (s *SavedSeller) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&Profile{},
		&Gig{},
		&Booking{},
		&Message{},
		&Review{},
		&SavedSeller{},
	}
}
