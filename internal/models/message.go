package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a direct message. The conversation is the unordered pair
// (SenderID, ReceiverID); there is no conversation row.
type Message struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_messages_sender_token,priority:1" json:"sender_id"`
	ReceiverID uuid.UUID  `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Content    string     `gorm:"type:text" json:"content"`
	IsFile     bool       `gorm:"not null;default:false" json:"is_file"`
	FileURL    string     `gorm:"type:text" json:"file_url,omitempty"`
	ReadAt     *time.Time `json:"read_at"`

	// ClientToken is the sender's idempotency token; NULL for rows written
	// by the server itself.
	ClientToken *string `gorm:"type:varchar(64);uniqueIndex:idx_messages_sender_token,priority:2" json:"client_token,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Counterpart returns the other side of the pair relative to me.
func (m *Message) Counterpart(me uuid.UUID) uuid.UUID {
	if m.SenderID == me {
		return m.ReceiverID
	}
	return m.SenderID
}
