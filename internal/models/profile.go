package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

type Profile struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"email,omitempty"`
	Password string    `gorm:"not null" json:"-"`
	Username string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	FullName string    `gorm:"type:varchar(120);not null" json:"full_name"`
	Role     Role      `gorm:"type:varchar(20);not null;index" json:"role"`

	AvatarURL string `gorm:"type:text" json:"avatar_url"`
	Bio       string `gorm:"type:text" json:"bio"`
	Phone     string `gorm:"type:varchar(30)" json:"phone,omitempty"`

	// Rating is the mean of every review received; written by the review
	// service, never by profile updates.
	Rating      float64 `gorm:"not null;default:0" json:"rating"`
	RatingCount int64   `gorm:"not null;default:0" json:"rating_count"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Redact clears contact details before the profile is embedded in a
// response for someone else.
func (p *Profile) Redact() {
	if p == nil {
		return
	}
	p.Email = ""
	p.Phone = ""
}

// PublicProfile is the shape exposed to other users.
type PublicProfile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name"`
	Role        Role      `json:"role"`
	AvatarURL   string    `json:"avatar_url"`
	Bio         string    `json:"bio"`
	Rating      float64   `json:"rating"`
	RatingCount int64     `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Profile) Public() PublicProfile {
	return PublicProfile{
		ID:          p.ID,
		Username:    p.Username,
		FullName:    p.FullName,
		Role:        p.Role,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		Rating:      p.Rating,
		RatingCount: p.RatingCount,
		CreatedAt:   p.CreatedAt,
	}
}
