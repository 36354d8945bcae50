package conversation

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
)

// fakeBackend keeps messages in memory and mimics the server's token dedup.
type fakeBackend struct {
	mu        sync.Mutex
	me        uuid.UUID
	rows      []models.Message
	clock     time.Time
	sendErr   error
	readErr   error
	upErr     error
	reads     [][]uuid.UUID
	uploads   []string
	beforeAck func(models.Message)
	midFetch  func()
}

func newFake(me uuid.UUID) *fakeBackend {
	return &fakeBackend{me: me, clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeBackend) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeBackend) add(from, to uuid.UUID, content string) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := models.Message{ID: uuid.New(), SenderID: from, ReceiverID: to, Content: content, CreatedAt: f.tick()}
	f.rows = append(f.rows, m)
	return m
}

func (f *fakeBackend) History(_ context.Context, other uuid.UUID, before string, limit int) ([]models.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := append([]models.Message(nil), f.rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	if before != "" {
		for i, m := range rows {
			if m.ID.String() == before {
				rows = rows[:i]
				break
			}
		}
	}
	more := len(rows) > limit
	if more {
		rows = rows[len(rows)-limit:]
	}
	hook := f.midFetch
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	f.mu.Lock()
	return rows, more, nil
}

func (f *fakeBackend) SendMessage(_ context.Context, other uuid.UUID, content, fileURL, token string) (*models.Message, error) {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return nil, err
	}
	for _, m := range f.rows {
		if m.ClientToken != nil && *m.ClientToken == token {
			f.mu.Unlock()
			return &m, nil
		}
	}
	tok := token
	m := models.Message{
		ID: uuid.New(), SenderID: f.me, ReceiverID: other,
		Content: content, FileURL: fileURL, IsFile: fileURL != "",
		ClientToken: &tok, CreatedAt: f.tick(),
	}
	f.rows = append(f.rows, m)
	hook := f.beforeAck
	f.mu.Unlock()

	if hook != nil {
		hook(m)
	}
	return &m, nil
}

func (f *fakeBackend) MarkRead(_ context.Context, _ uuid.UUID, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	f.reads = append(f.reads, ids)
	var n int64
	now := f.tick()
	for i := range f.rows {
		for _, id := range ids {
			if f.rows[i].ID == id && f.rows[i].ReadAt == nil {
				f.rows[i].ReadAt = &now
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeBackend) UploadFile(_ context.Context, bucket, name string, r io.Reader) (string, error) {
	if f.upErr != nil {
		return "", f.upErr
	}
	_, _ = io.ReadAll(r)
	url := "http://files.test/" + bucket + "/" + name
	f.uploads = append(f.uploads, url)
	return url, nil
}

func assertOrderedUnique(t *testing.T, entries []Entry) {
	t.Helper()
	seen := map[string]bool{}
	for i, e := range entries {
		assert.False(t, seen[e.Key()], "duplicate entry %s", e.Key())
		seen[e.Key()] = true
		if i > 0 {
			assert.False(t, e.CreatedAt.Before(entries[i-1].CreatedAt), "entries out of order at %d", i)
		}
	}
}

func TestOptimisticSendEndsWithOneMessage(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	c := New(be, me, other)

	var snapshots [][]Entry
	c.OnChange(func() { snapshots = append(snapshots, c.Messages()) })

	sent, err := c.Send(context.Background(), "Hello", nil)
	require.NoError(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, StateSent, msgs[0].State)
	assert.Equal(t, sent.ID, msgs[0].ID)
	assert.Empty(t, msgs[0].LocalID)

	require.NotEmpty(t, snapshots)
	assert.Equal(t, StatePending, snapshots[0][0].State, "the message shows before the server answers")
	assert.True(t, strings.HasPrefix(snapshots[0][0].LocalID, "tmp-"))
}

func TestRealtimeEchoBeforeAckDoesNotDuplicate(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	c := New(be, me, other)
	ctx := context.Background()

	be.beforeAck = func(m models.Message) { c.Receive(ctx, m) }
	_, err := c.Send(ctx, "Hello", nil)
	require.NoError(t, err)

	// and a late duplicate push after the ack
	c.Receive(ctx, be.rows[0])

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, be.rows[0].ID, msgs[0].ID)
}

func TestLoadIsOrderedAndMarksRead(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	be.add(other, me, "hi")
	be.add(me, other, "hey")
	be.add(other, me, "can you do a logo?")

	c := New(be, me, other)
	require.NoError(t, c.Load(context.Background()))

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assertOrderedUnique(t, msgs)
	assert.Equal(t, []string{"hi", "hey", "can you do a logo?"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})

	require.Len(t, be.reads, 1)
	assert.Len(t, be.reads[0], 2)
	for _, m := range msgs {
		if m.ReceiverID == me {
			assert.NotNil(t, m.ReadAt)
		} else {
			assert.Nil(t, m.ReadAt, "my own messages are not marked by me")
		}
	}

	// reloading finds nothing left to mark
	require.NoError(t, c.Load(context.Background()))
	assert.Len(t, be.reads, 1)
}

func TestMarkReadFailureRevertsPatch(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	be.add(other, me, "hi")
	be.readErr = errors.New("offline")

	c := New(be, me, other)
	require.Error(t, c.Load(context.Background()))
	assert.Nil(t, c.Messages()[0].ReadAt)
}

func TestReceiveFromOtherSide(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	c := New(be, me, other)
	ctx := context.Background()

	c.Receive(ctx, models.Message{ID: uuid.New(), SenderID: uuid.New(), ReceiverID: me, Content: "spam", CreatedAt: time.Now()})
	assert.Empty(t, c.Messages())

	in := be.add(other, me, "ping")
	c.Receive(ctx, in)
	c.Receive(ctx, in)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].ReadAt)
	require.Len(t, be.reads, 1)
	assert.Equal(t, []uuid.UUID{in.ID}, be.reads[0])
}

func TestReadReceiptUpdatesMyMessage(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	c := New(be, me, other)
	ctx := context.Background()

	sent, err := c.Send(ctx, "Hello", nil)
	require.NoError(t, err)

	seen := sent.Message
	at := time.Now().UTC()
	seen.ReadAt = &at
	c.Receive(ctx, seen)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].ReadAt)
	assert.True(t, at.Equal(*msgs[0].ReadAt))
}

func TestFailedSendRetryAndDiscard(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	c := New(be, me, other)
	ctx := context.Background()

	be.sendErr = errors.New("timeout")
	_, err := c.Send(ctx, "Hello", nil)
	require.Error(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, StateFailed, msgs[0].State)
	failedID := msgs[0].LocalID

	// failed entries survive a reload
	require.NoError(t, c.Load(ctx))
	require.Len(t, c.Messages(), 1)

	be.sendErr = nil
	_, err = c.Retry(ctx, failedID)
	require.NoError(t, err)
	msgs = c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, StateSent, msgs[0].State)

	_, err = c.Retry(ctx, failedID)
	assert.ErrorIs(t, err, ErrNotFound)

	be.sendErr = errors.New("timeout")
	_, err = c.Send(ctx, "second", nil)
	require.Error(t, err)
	msgs = c.Messages()
	require.Len(t, msgs, 2)
	failed := ""
	for _, m := range msgs {
		if m.State == StateFailed {
			failed = m.LocalID
		}
	}
	require.NotEmpty(t, failed)
	require.NoError(t, c.Discard(failed))
	assert.Len(t, c.Messages(), 1)
}

func TestSendValidationAndAttachments(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	c := New(be, me, other)
	ctx := context.Background()

	_, err := c.Send(ctx, "   ", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	be.upErr = errors.New("too large")
	_, err = c.Send(ctx, "", &Attachment{Name: "brief.pdf", Body: strings.NewReader("%PDF")})
	require.Error(t, err)
	assert.Empty(t, c.Messages(), "a failed upload appends nothing")

	be.upErr = nil
	e, err := c.Send(ctx, "", &Attachment{Name: "brief.pdf", Body: strings.NewReader("%PDF")})
	require.NoError(t, err)
	assert.True(t, e.IsFile)
	assert.Equal(t, "http://files.test/chat-files/brief.pdf", e.FileURL)
}

func TestLoadOlderMergesWithoutDuplicates(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	for i := 0; i < 5; i++ {
		be.add(me, other, string(rune('a'+i)))
	}
	c := New(be, me, other)
	c.PageSize = 2

	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	assert.True(t, c.HasMore())
	require.NoError(t, c.LoadOlder(ctx))
	require.NoError(t, c.LoadOlder(ctx))
	assert.False(t, c.HasMore())
	require.NoError(t, c.LoadOlder(ctx))

	msgs := c.Messages()
	require.Len(t, msgs, 5)
	assertOrderedUnique(t, msgs)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, "e", msgs[4].Content)
}

func TestPushDuringReloadIsKept(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	first := be.add(other, me, "first")

	c := New(be, me, other)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	var pushed models.Message
	be.midFetch = func() {
		be.midFetch = nil
		pushed = be.add(other, me, "arrives during reload")
		c.Receive(ctx, pushed)
	}
	require.NoError(t, c.Load(ctx))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assertOrderedUnique(t, msgs)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, pushed.ID, msgs[1].ID)
	assert.NotNil(t, msgs[1].ReadAt)
}

func TestReloadKeepsOlderPages(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	be := newFake(me)
	for i := 0; i < 4; i++ {
		be.add(other, me, string(rune('a'+i)))
	}
	c := New(be, me, other)
	c.PageSize = 2
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.LoadOlder(ctx))
	assert.False(t, c.HasMore())

	be.add(other, me, "e")
	require.NoError(t, c.Load(ctx))
	msgs := c.Messages()
	require.Len(t, msgs, 5)
	assertOrderedUnique(t, msgs)
	assert.False(t, c.HasMore(), "older pages were already loaded")
}
