package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/gigs"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/profiles"
)

func writeEnv(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": status < 300, "message": "ok", "data": data})
}

func TestLoginStoresTokenAndSendsBearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "jane@example.com", in["email"])
		writeEnv(w, 200, map[string]any{"token": "tok-123", "profile": map[string]any{"username": "jane"}})
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		writeEnv(w, 200, map[string]any{"username": "jane"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "")
	a, err := c.Login(context.Background(), "jane@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", c.Token)
	assert.Equal(t, "jane", a.Profile.Username)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jane", me.Username)
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"success":false,"message":"Validation error","errors":{"reason":["must be at least 10 characters"]}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "t").CancelBooking(context.Background(), uuid.New(), "Found another seller")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, []string{"must be at least 10 characters"}, apiErr.Errors["reason"])
	assert.Contains(t, apiErr.Error(), "reason")
}

func TestInvalidInputNeverReachesServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeEnv(w, 200, map[string]any{"id": uuid.NewString(), "status": "cancelled"})
	}))
	defer srv.Close()
	c := New(srv.URL, "t")
	ctx := context.Background()

	_, err := c.CancelBooking(ctx, uuid.New(), "short")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.NotEmpty(t, apiErr.Errors["reason"])

	_, err = c.Signup(ctx, profiles.SignupInput{
		Email:                "jane@example.com",
		Password:             "123",
		PasswordConfirmation: "456",
		FullName:             "Jane",
		Username:             "jane",
		Role:                 "buyer",
	})
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Errors, "password")
	assert.Contains(t, apiErr.Errors, "password_confirmation")
	assert.Contains(t, apiErr.Errors, "accept_terms")
	assert.Zero(t, hits.Load())

	_, err = c.CancelBooking(ctx, uuid.New(), "Found another seller nearby")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestHistoryAndUpload(t *testing.T) {
	other := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/conversations/"+other.String()+"/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("before"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		writeEnv(w, 200, map[string]any{
			"items":    []map[string]any{{"id": uuid.NewString(), "content": "hi"}},
			"has_more": true,
		})
	})
	mux.HandleFunc("/api/uploads/chat-files", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		body, _ := io.ReadAll(f)
		assert.Equal(t, "brief.txt", hdr.Filename)
		assert.Equal(t, "hello", string(body))
		writeEnv(w, 201, map[string]any{"bucket": "chat-files", "url": "http://files/x.txt"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(srv.URL, "t")

	items, more, err := c.History(context.Background(), other, "abc", 20)
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, items, 1)
	assert.Equal(t, "hi", items[0].Content)

	url, err := c.UploadFile(context.Background(), "chat-files", "/tmp/brief.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "http://files/x.txt", url)
}

func TestCachedGigsInvalidateOnWrite(t *testing.T) {
	var lists int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/gigs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeEnv(w, 201, map[string]any{"id": uuid.NewString(), "title": "New gig"})
			return
		}
		atomic.AddInt32(&lists, 1)
		writeEnv(w, 200, map[string]any{"items": []any{}, "meta": map[string]any{"page": 1}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCached(New(srv.URL, "t"), time.Minute)
	ctx := context.Background()
	f := gigs.ListFilter{Category: "design"}

	_, err := c.ListGigs(ctx, f)
	require.NoError(t, err)
	_, err = c.ListGigs(ctx, f)
	require.NoError(t, err)
	assert.EqualValues(t, 1, lists)

	g, err := c.CreateGig(ctx, gigs.CreateInput{Title: "New gig"})
	require.NoError(t, err)

	_, err = c.ListGigs(ctx, f)
	require.NoError(t, err)
	assert.EqualValues(t, 2, lists)

	got, err := c.GetGig(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "New gig", got.Title, "detail served from the write")
}

func TestRealtimeSubscribeAndReceive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/realtime", r.URL.Path)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var sub realtime.Frame
		if !assert.NoError(t, conn.ReadJSON(&sub)) {
			return
		}
		assert.Equal(t, realtime.FrameSubscribe, sub.Type)
		assert.Equal(t, "messages", sub.Table)

		if sub.Filter == nil || sub.Filter.Column != "receiver_id" {
			_ = conn.WriteJSON(realtime.Frame{Type: realtime.FrameError, ID: sub.ID, Message: "forbidden"})
			return
		}
		_ = conn.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribed, ID: sub.ID})
		_ = conn.WriteJSON(realtime.Frame{
			Type: realtime.FrameChange, Subscription: sub.ID,
			Table: "messages", Event: realtime.EventInsert,
			Record: map[string]any{"id": uuid.NewString(), "content": "hello"},
		})
		var bye realtime.Frame
		_ = conn.ReadJSON(&bye)
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rt, err := c.Dial(ctx)
	require.NoError(t, err)
	defer rt.Close()

	got := make(chan models.Message, 1)
	_, err = rt.Subscribe(ctx, "messages", realtime.EventInsert, &realtime.Filter{Column: "receiver_id", Value: "me"}, func(ev realtime.ChangeEvent) {
		m, err := Decode[models.Message](ev.Record)
		if err == nil {
			got <- m
		}
	})
	require.NoError(t, err)

	select {
	case m := <-got:
		assert.Equal(t, "hello", m.Content)
	case <-ctx.Done():
		t.Fatal("no change delivered")
	}
}
