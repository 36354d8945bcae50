package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GigStatus string

const (
	GigDraft     GigStatus = "draft"
	GigPublished GigStatus = "published"
	GigArchived  GigStatus = "archived"
)

type Gig struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID    uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`
	Title       string    `gorm:"type:varchar(120);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Price       int64     `gorm:"not null" json:"price"`
	Category    string    `gorm:"type:varchar(60);index" json:"category"`
	Status      GigStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`

	GalleryURLs datatypes.JSONSlice[string] `json:"gallery_urls"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Seller *Profile `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

func (g *Gig) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Status == "" {
		g.Status = GigDraft
	}
	if g.GalleryURLs == nil {
		g.GalleryURLs = datatypes.JSONSlice[string]{}
	}
	return nil
}
