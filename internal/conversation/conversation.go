// Package conversation is the client-side state of one direct-message
// thread. It merges history pages, optimistic sends and realtime pushes
// into a single ordered list in which every message appears once.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
)

// ChatBucket is where attachments are uploaded before the message is sent.
const ChatBucket = "chat-files"

var (
	ErrEmpty    = errors.New("conversation: message needs text or an attachment")
	ErrNotFound = errors.New("conversation: no such entry")
	ErrNotRetry = errors.New("conversation: entry has not failed")
)

// Backend is the remote side of a conversation. internal/client.Client
// implements it.
type Backend interface {
	History(ctx context.Context, other uuid.UUID, before string, limit int) ([]models.Message, bool, error)
	SendMessage(ctx context.Context, other uuid.UUID, content, fileURL, clientToken string) (*models.Message, error)
	MarkRead(ctx context.Context, other uuid.UUID, ids []uuid.UUID) (int64, error)
	UploadFile(ctx context.Context, bucket, filename string, r io.Reader) (string, error)
}

type State string

const (
	StateSent    State = "sent"
	StatePending State = "pending"
	StateFailed  State = "failed"
)

// Entry is one row of the thread. Pending and failed entries have no server
// id yet and are addressed by LocalID ("tmp-<token>").
type Entry struct {
	models.Message
	LocalID string
	State   State
	Err     error
}

// Key identifies the entry in the list.
func (e Entry) Key() string {
	if e.LocalID != "" {
		return e.LocalID
	}
	return e.ID.String()
}

func (e Entry) token() string {
	if e.ClientToken == nil {
		return ""
	}
	return *e.ClientToken
}

// Attachment is a file to upload alongside a message.
type Attachment struct {
	Name string
	Body io.Reader
}

type Conversation struct {
	Me       uuid.UUID
	Other    uuid.UUID
	PageSize int

	backend Backend
	now     func() time.Time

	mu       sync.Mutex
	entries  []Entry
	hasMore  bool
	onChange func()
}

func New(backend Backend, me, other uuid.UUID) *Conversation {
	return &Conversation{
		Me:       me,
		Other:    other,
		PageSize: 50,
		backend:  backend,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnChange registers fn to run after every change to the list. fn runs
// outside the lock and may call Messages.
func (c *Conversation) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Messages returns a snapshot ordered by (created_at, id).
func (c *Conversation) Messages() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Conversation) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Load fetches the newest page, merges it into the list and marks what the
// other side sent as read. Entries already listed, including rows pushed
// while the page was in flight, are kept.
func (c *Conversation) Load(ctx context.Context) error {
	page, more, err := c.backend.History(ctx, c.Other, "", c.PageSize)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	c.mu.Lock()
	// older pages already loaded keep their own has-more answer
	if oldest, ok := c.oldestSentLocked(); !ok || len(page) == 0 || !oldest.Before(page[0].CreatedAt) {
		c.hasMore = more
	}
	for _, m := range page {
		c.upsert(m)
	}
	c.sortLocked()
	c.mu.Unlock()
	c.changed()

	return c.markUnread(ctx)
}

// LoadOlder prepends the page before the oldest loaded message.
func (c *Conversation) LoadOlder(ctx context.Context) error {
	c.mu.Lock()
	before := ""
	for _, e := range c.entries {
		if e.State == StateSent {
			before = e.ID.String()
			break
		}
	}
	more := c.hasMore
	c.mu.Unlock()
	if before == "" || !more {
		return nil
	}

	page, more, err := c.backend.History(ctx, c.Other, before, c.PageSize)
	if err != nil {
		return fmt.Errorf("load older: %w", err)
	}
	c.mu.Lock()
	for _, m := range page {
		c.upsert(m)
	}
	c.hasMore = more
	c.sortLocked()
	c.mu.Unlock()
	c.changed()
	return c.markUnread(ctx)
}

// Send appends an optimistic entry and replaces it with the stored row once
// the server acknowledges. An attachment is uploaded first; if that fails
// nothing is appended.
func (c *Conversation) Send(ctx context.Context, text string, att *Attachment) (*Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" && att == nil {
		return nil, ErrEmpty
	}

	fileURL := ""
	if att != nil {
		url, err := c.backend.UploadFile(ctx, ChatBucket, att.Name, att.Body)
		if err != nil {
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		fileURL = url
	}

	token := uuid.NewString()
	pending := Entry{
		Message: models.Message{
			SenderID:    c.Me,
			ReceiverID:  c.Other,
			Content:     text,
			IsFile:      fileURL != "",
			FileURL:     fileURL,
			ClientToken: &token,
			CreatedAt:   c.now(),
		},
		LocalID: "tmp-" + token,
		State:   StatePending,
	}
	c.mu.Lock()
	c.entries = append(c.entries, pending)
	c.sortLocked()
	c.mu.Unlock()
	c.changed()

	return c.deliver(ctx, pending)
}

// Retry resends a failed entry with its original token, so the server
// returns the stored row if the first attempt actually landed.
func (c *Conversation) Retry(ctx context.Context, localID string) (*Entry, error) {
	c.mu.Lock()
	i := c.indexByKey(localID)
	if i < 0 {
		c.mu.Unlock()
		return nil, ErrNotFound
	}
	if c.entries[i].State != StateFailed {
		c.mu.Unlock()
		return nil, ErrNotRetry
	}
	c.entries[i].State = StatePending
	c.entries[i].Err = nil
	e := c.entries[i]
	c.mu.Unlock()
	c.changed()

	return c.deliver(ctx, e)
}

// Discard drops a failed entry.
func (c *Conversation) Discard(localID string) error {
	c.mu.Lock()
	i := c.indexByKey(localID)
	if i < 0 {
		c.mu.Unlock()
		return ErrNotFound
	}
	if c.entries[i].State != StateFailed {
		c.mu.Unlock()
		return ErrNotRetry
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	c.mu.Unlock()
	c.changed()
	return nil
}

// Receive applies a row pushed by the realtime feed, insert or update.
// Rows outside this pair are ignored.
func (c *Conversation) Receive(ctx context.Context, m models.Message) {
	if !c.inPair(m) {
		return
	}
	c.mu.Lock()
	c.upsert(m)
	c.sortLocked()
	c.mu.Unlock()
	c.changed()

	if m.ReceiverID == c.Me && m.ReadAt == nil {
		if err := c.markUnread(ctx); err != nil {
			logger.WithCtx(ctx).Warn("mark read failed", "other", c.Other, "err", err)
		}
	}
}

func (c *Conversation) deliver(ctx context.Context, e Entry) (*Entry, error) {
	m, err := c.backend.SendMessage(ctx, c.Other, e.Content, e.FileURL, e.token())
	if err != nil {
		c.mu.Lock()
		if i := c.indexByKey(e.LocalID); i >= 0 {
			c.entries[i].State = StateFailed
			c.entries[i].Err = err
		}
		c.mu.Unlock()
		c.changed()
		return nil, fmt.Errorf("send message: %w", err)
	}

	c.mu.Lock()
	sent := c.upsert(*m)
	c.sortLocked()
	c.mu.Unlock()
	c.changed()
	return &sent, nil
}

// upsert merges a server row, returning the stored entry. Must be called
// with mu held; the caller re-sorts.
func (c *Conversation) upsert(m models.Message) Entry {
	e := Entry{Message: m, State: StateSent}

	if i := c.indexByKey(m.ID.String()); i >= 0 {
		// keep a read_at we already applied locally
		if e.ReadAt == nil {
			e.ReadAt = c.entries[i].ReadAt
		}
		c.entries[i] = e
		c.dropPending(m)
		return e
	}
	if tok := e.token(); tok != "" && m.SenderID == c.Me {
		if i := c.indexByKey("tmp-" + tok); i >= 0 {
			c.entries[i] = e
			return e
		}
	}
	c.entries = append(c.entries, e)
	return e
}

// dropPending removes the optimistic twin of m if it is still listed.
func (c *Conversation) dropPending(m models.Message) {
	if m.ClientToken == nil || m.SenderID != c.Me {
		return
	}
	if i := c.indexByKey("tmp-" + *m.ClientToken); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
	}
}

func (c *Conversation) markUnread(ctx context.Context) error {
	now := c.now()
	c.mu.Lock()
	var ids []uuid.UUID
	for i := range c.entries {
		e := &c.entries[i]
		if e.State == StateSent && e.ReceiverID == c.Me && e.ReadAt == nil {
			e.ReadAt = &now
			ids = append(ids, e.ID)
		}
	}
	c.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	c.changed()

	if _, err := c.backend.MarkRead(ctx, c.Other, ids); err != nil {
		c.mu.Lock()
		for _, id := range ids {
			if i := c.indexByKey(id.String()); i >= 0 && c.entries[i].ReadAt != nil && c.entries[i].ReadAt.Equal(now) {
				c.entries[i].ReadAt = nil
			}
		}
		c.mu.Unlock()
		c.changed()
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (c *Conversation) oldestSentLocked() (time.Time, bool) {
	for _, e := range c.entries {
		if e.State == StateSent {
			return e.CreatedAt, true
		}
	}
	return time.Time{}, false
}

func (c *Conversation) inPair(m models.Message) bool {
	return (m.SenderID == c.Me && m.ReceiverID == c.Other) ||
		(m.SenderID == c.Other && m.ReceiverID == c.Me)
}

func (c *Conversation) indexByKey(key string) int {
	for i := range c.entries {
		if c.entries[i].Key() == key {
			return i
		}
	}
	return -1
}

func (c *Conversation) sortLocked() {
	sort.SliceStable(c.entries, func(i, j int) bool {
		a, b := c.entries[i], c.entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Key() < b.Key()
	})
}

func (c *Conversation) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
