package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"booking_id"`
	ReviewerID uuid.UUID `gorm:"type:uuid;not null;index" json:"reviewer_id"`
	ReviewedID uuid.UUID `gorm:"type:uuid;not null;index" json:"reviewed_id"`

	Rating  int    `gorm:"not null" json:"rating"` // 1-5
	Comment string `gorm:"type:text" json:"comment"`

	CreatedAt time.Time `json:"created_at"`

	Reviewer *Profile `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
