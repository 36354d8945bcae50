package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingAccepted   BookingStatus = "accepted"
	BookingRejected   BookingStatus = "rejected"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

type Booking struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	GigID        uuid.UUID     `gorm:"type:uuid;not null;index" json:"gig_id"`
	BuyerID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"buyer_id"`
	SellerID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"seller_id"`
	Price        int64         `gorm:"not null" json:"price"`
	Requirements string        `gorm:"type:text" json:"requirements"`
	Status       BookingStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CancelReason string        `gorm:"type:text" json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Gig    *Gig     `gorm:"foreignKey:GigID" json:"gig,omitempty"`
	Buyer  *Profile `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Seller *Profile `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BookingPending
	}
	return nil
}
