// Package client is the Go SDK for the gigmarket API. It decodes the
// {"success","message","data","errors"} envelope and implements
// conversation.Backend so a CLI or UI can drive a chat thread directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/booking"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/bookings"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/gigs"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/messaging"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/profiles"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/storage"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Errors  map[string][]string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for field, msgs := range e.Errors {
		parts = append(parts, field+" "+strings.Join(msgs, ", "))
	}
	return fmt.Sprintf("api: %d %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
}

// invalid reports a locally rejected request the same way the API would.
func invalid(err error) error {
	appErr, ok := apperr.As(err)
	if !ok {
		return err
	}
	return &APIError{Status: appErr.Status, Message: appErr.Message, Errors: appErr.Fields}
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, p string, query url.Values, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, p, query, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, p string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.BaseURL + "/api" + p
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil && err != io.EOF {
		return &APIError{Status: res.StatusCode, Message: "unreadable response: " + err.Error()}
	}
	if res.StatusCode >= 300 || (!env.Success && res.StatusCode != http.StatusNoContent) {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return &APIError{Status: res.StatusCode, Message: msg, Errors: env.Errors}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// Auth is returned by Login and Signup.
type Auth struct {
	Token   string         `json:"token"`
	Profile models.Profile `json:"profile"`
}

// Login stores the returned token on c.
func (c *Client) Login(ctx context.Context, email, password string) (*Auth, error) {
	var a Auth
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, profiles.LoginInput{Email: email, Password: password}, &a); err != nil {
		return nil, err
	}
	c.Token = a.Token
	return &a, nil
}

// Signup checks in locally and only calls the API when it is valid.
func (c *Client) Signup(ctx context.Context, in profiles.SignupInput) (*Auth, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	var a Auth
	if err := c.do(ctx, http.MethodPost, "/auth/signup", nil, in, &a); err != nil {
		return nil, err
	}
	c.Token = a.Token
	return &a, nil
}

func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func gigQuery(f gigs.ListFilter) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("q", f.Q)
	set("category", f.Category)
	set("seller_id", f.SellerID)
	set("sort", f.Sort)
	if f.MinPrice > 0 {
		q.Set("min_price", strconv.FormatInt(f.MinPrice, 10))
	}
	if f.MaxPrice > 0 {
		q.Set("max_price", strconv.FormatInt(f.MaxPrice, 10))
	}
	if f.Page.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (c *Client) ListGigs(ctx context.Context, f gigs.ListFilter) (*gigs.ListResult, error) {
	var res gigs.ListResult
	if err := c.do(ctx, http.MethodGet, "/gigs", gigQuery(f), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	var g models.Gig
	if err := c.do(ctx, http.MethodGet, "/gigs/"+id.String(), nil, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) CreateGig(ctx context.Context, in gigs.CreateInput) (*models.Gig, error) {
	var g models.Gig
	if err := c.do(ctx, http.MethodPost, "/gigs", nil, in, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) PublishGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	var g models.Gig
	if err := c.do(ctx, http.MethodPost, "/gigs/"+id.String()+"/publish", nil, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) CreateBooking(ctx context.Context, gigID uuid.UUID, requirements string) (*models.Booking, error) {
	body := map[string]string{"gig_id": gigID.String(), "requirements": requirements}
	var b models.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", nil, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookings returns the caller's bookings; as is "buyer", "seller" or
// empty for both.
func (c *Client) ListBookings(ctx context.Context, as, status string, page int) (*bookings.ListResult, error) {
	q := url.Values{}
	if as != "" {
		q.Set("as", as)
	}
	if status != "" {
		q.Set("status", status)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	var res bookings.ListResult
	if err := c.do(ctx, http.MethodGet, "/bookings", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) TransitionBooking(ctx context.Context, id uuid.UUID, to models.BookingStatus) (*models.Booking, error) {
	var b models.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings/"+id.String()+"/transition", nil, map[string]string{"status": string(to)}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CancelBooking refuses a short reason without calling the API.
func (c *Client) CancelBooking(ctx context.Context, id uuid.UUID, reason string) (*models.Booking, error) {
	if err := booking.ValidateCancelReason(reason); err != nil {
		return nil, invalid(apperr.Field("reason", strings.TrimPrefix(err.Error(), "booking: ")))
	}
	var b models.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings/"+id.String()+"/cancel", nil, map[string]string{"reason": reason}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// History returns one page of the thread with other, oldest first.
func (c *Client) History(ctx context.Context, other uuid.UUID, before string, limit int) ([]models.Message, bool, error) {
	q := url.Values{}
	if before != "" {
		q.Set("before", before)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var h messaging.History
	if err := c.do(ctx, http.MethodGet, "/conversations/"+other.String()+"/messages", q, nil, &h); err != nil {
		return nil, false, err
	}
	return h.Items, h.HasMore, nil
}

func (c *Client) SendMessage(ctx context.Context, other uuid.UUID, content, fileURL, clientToken string) (*models.Message, error) {
	in := messaging.SendInput{Content: content, FileURL: fileURL, ClientToken: clientToken}
	var m models.Message
	if err := c.do(ctx, http.MethodPost, "/conversations/"+other.String()+"/messages", nil, in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) MarkRead(ctx context.Context, other uuid.UUID, ids []uuid.UUID) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	body := map[string][]uuid.UUID{"ids": ids}
	if err := c.do(ctx, http.MethodPost, "/conversations/"+other.String()+"/read", nil, body, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *Client) Conversations(ctx context.Context) ([]messaging.Conversation, error) {
	var out []messaging.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadFile posts r as multipart field "file" and returns the public URL.
func (c *Client) UploadFile(ctx context.Context, bucket, filename string, r io.Reader) (string, error) {
	obj, err := c.Upload(ctx, bucket, filename, r)
	if err != nil {
		return "", err
	}
	return obj.URL, nil
}

func (c *Client) Upload(ctx context.Context, bucket, filename string, r io.Reader) (*storage.Object, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", path.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/uploads/"+url.PathEscape(bucket), nil, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var obj storage.Object
	if err := c.send(req, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}
