// Package messaging stores direct messages between two profiles. A
// conversation is the unordered pair of participants; there is no
// conversation row.
package messaging

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/metrics"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/validation"
)

const (
	table           = "messages"
	defaultPageSize = 50
	maxPageSize     = 200
)

type Service struct {
	DB       *gorm.DB
	Broker   realtime.Broker
	PageSize int
}

func New(db *gorm.DB, broker realtime.Broker, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{DB: db, Broker: broker, PageSize: pageSize}
}

type SendInput struct {
	Content     string `json:"content" validate:"max=5000"`
	FileURL     string `json:"file_url" validate:"omitempty,url"`
	ClientToken string `json:"client_token" validate:"max=64"`
}

// Send stores a message from senderID to receiverID. Repeating a send with
// the same client token returns the stored row instead of a duplicate.
func (s *Service) Send(ctx context.Context, senderID, receiverID uuid.UUID, in SendInput) (*models.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.FileURL = strings.TrimSpace(in.FileURL)
	in.ClientToken = strings.TrimSpace(in.ClientToken)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Content == "" && in.FileURL == "" {
		return nil, apperr.Field("content", "message needs text or a file")
	}
	if senderID == receiverID {
		return nil, apperr.BadRequest("cannot message yourself", nil)
	}

	if in.ClientToken != "" {
		if m, err := s.byToken(ctx, senderID, receiverID, in.ClientToken); err != nil || m != nil {
			return m, err
		}
	}

	var receiver models.Profile
	if err := s.DB.WithContext(ctx).Select("id", "is_active").First(&receiver, "id = ?", receiverID).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Recipient", err)
		}
		return nil, apperr.Internal("could not load recipient", err)
	}
	if !receiver.IsActive {
		return nil, apperr.Forbidden("recipient is inactive")
	}

	m := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    in.Content,
		IsFile:     in.FileURL != "",
		FileURL:    in.FileURL,
	}
	if in.ClientToken != "" {
		tok := in.ClientToken
		m.ClientToken = &tok
	}
	if err := s.DB.WithContext(ctx).Create(m).Error; err != nil {
		if services.IsUniqueViolation(err) && in.ClientToken != "" {
			// lost a race with a retry of the same send
			if existing, lookupErr := s.byToken(ctx, senderID, receiverID, in.ClientToken); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, apperr.Internal("could not send message", err)
	}

	metrics.MessagesSent.Inc()
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventInsert, m, nil))
	return m, nil
}

// byToken finds the row an earlier send with token stored. A token already
// spent on another receiver is a conflict.
func (s *Service) byToken(ctx context.Context, senderID, receiverID uuid.UUID, token string) (*models.Message, error) {
	var m models.Message
	err := s.DB.WithContext(ctx).Where("sender_id = ? AND client_token = ?", senderID, token).First(&m).Error
	if err == nil {
		if m.ReceiverID != receiverID {
			return nil, apperr.Conflict("client token already used in another conversation")
		}
		return &m, nil
	}
	if services.IsNotFound(err) {
		return nil, nil
	}
	return nil, apperr.Internal("could not check message token", err)
}

type HistoryQuery struct {
	Before string // id of the oldest message already held
	Limit  int
}

// History is one page of a conversation, oldest first.
type History struct {
	Items   []models.Message `json:"items"`
	HasMore bool             `json:"has_more"`
}

func pair(me, other uuid.UUID) (string, []any) {
	return "((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
		[]any{me, other, other, me}
}

// History returns the newest page of messages between me and other that
// precede q.Before, ordered by (created_at, id) ascending.
func (s *Service) History(ctx context.Context, me, other uuid.UUID, q HistoryQuery) (*History, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = s.PageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	cond, args := pair(me, other)
	tx := s.DB.WithContext(ctx).Model(&models.Message{}).Where(cond, args...)

	if q.Before != "" {
		beforeID, err := uuid.Parse(q.Before)
		if err != nil {
			return nil, apperr.Field("before", "must be a valid id")
		}
		var cursor models.Message
		if err := s.DB.WithContext(ctx).Where(cond, args...).First(&cursor, "id = ?", beforeID).Error; err != nil {
			if services.IsNotFound(err) {
				return nil, apperr.Field("before", "is not a message in this conversation")
			}
			return nil, apperr.Internal("could not load cursor", err)
		}
		tx = tx.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	rows := []models.Message{}
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, apperr.Internal("could not load messages", err)
	}

	h := &History{HasMore: len(rows) > limit}
	if h.HasMore {
		rows = rows[:limit]
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	h.Items = rows
	return h, nil
}

// MarkRead stamps read_at on unread messages other sent to me. With ids it
// only touches those messages. Already-read messages keep their original
// read_at, so repeating the call changes nothing.
func (s *Service) MarkRead(ctx context.Context, me, other uuid.UUID, ids []uuid.UUID) (int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND read_at IS NULL", me, other)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}

	var pending []models.Message
	if err := q.Find(&pending).Error; err != nil {
		return 0, apperr.Internal("could not load unread messages", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	pendingIDs := make([]uuid.UUID, len(pending))
	for i, m := range pending {
		pendingIDs[i] = m.ID
	}
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id IN ? AND read_at IS NULL", pendingIDs).
		Update("read_at", now)
	if res.Error != nil {
		return 0, apperr.Internal("could not mark messages read", res.Error)
	}

	for i := range pending {
		old := pending[i]
		pending[i].ReadAt = &now
		realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventUpdate, pending[i], old))
	}
	return res.RowsAffected, nil
}

// UnreadTotal counts every unread message addressed to me.
func (s *Service) UnreadTotal(ctx context.Context, me uuid.UUID) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND read_at IS NULL", me).
		Count(&n).Error; err != nil {
		return 0, apperr.Internal("could not count unread messages", err)
	}
	return n, nil
}

// Conversation is one row of the inbox.
type Conversation struct {
	Counterpart models.PublicProfile `json:"counterpart"`
	LastMessage models.Message       `json:"last_message"`
	UnreadCount int64                `json:"unread_count"`
}

// Conversations lists one entry per counterpart, most recent first.
func (s *Service) Conversations(ctx context.Context, me uuid.UUID) ([]Conversation, error) {
	db := s.DB.WithContext(ctx)

	var others []struct{ OtherID string }
	if err := db.Raw(`
		SELECT DISTINCT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS other_id
		FROM messages
		WHERE sender_id = ? OR receiver_id = ?`, me, me, me).
		Scan(&others).Error; err != nil {
		return nil, apperr.Internal("could not list conversations", err)
	}

	var unread []struct {
		SenderID string
		N        int64
	}
	if err := db.Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS n").
		Where("receiver_id = ? AND read_at IS NULL", me).
		Group("sender_id").
		Scan(&unread).Error; err != nil {
		return nil, apperr.Internal("could not count unread messages", err)
	}
	unreadBy := make(map[string]int64, len(unread))
	for _, u := range unread {
		unreadBy[u.SenderID] = u.N
	}

	out := make([]Conversation, 0, len(others))
	for _, o := range others {
		otherID, err := uuid.Parse(o.OtherID)
		if err != nil {
			continue
		}
		var profile models.Profile
		if err := db.First(&profile, "id = ?", otherID).Error; err != nil {
			continue
		}
		cond, args := pair(me, otherID)
		var last models.Message
		if err := db.Where(cond, args...).Order("created_at DESC").Order("id DESC").First(&last).Error; err != nil {
			continue
		}
		out = append(out, Conversation{
			Counterpart: profile.Public(),
			LastMessage: last,
			UnreadCount: unreadBy[otherID.String()],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}
