// Package gigs manages seller service listings.
package gigs

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/cache"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/validation"
)

const (
	table        = "gigs"
	cacheNS      = "gigs"
	maxGallery   = 10
	defaultCache = time.Minute
)

type Service struct {
	DB       *gorm.DB
	Broker   realtime.Broker
	Cache    *cache.Cache
	CacheTTL time.Duration
}

func New(db *gorm.DB, broker realtime.Broker, c *cache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultCache
	}
	return &Service{DB: db, Broker: broker, Cache: c, CacheTTL: ttl}
}

type CreateInput struct {
	Title       string `json:"title" validate:"required,min=5,max=120"`
	Description string `json:"description" validate:"max=5000"`
	Price       int64  `json:"price" validate:"gte=0"`
	Category    string `json:"category" validate:"max=60"`
	Publish     bool   `json:"publish"`
}

func (in *CreateInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
}

// Create stores a draft gig, or a published one when in.Publish is set and
// the gig is complete.
func (s *Service) Create(ctx context.Context, sellerID uuid.UUID, in CreateInput) (*models.Gig, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	g := &models.Gig{
		SellerID:    sellerID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Status:      models.GigDraft,
	}
	if in.Publish {
		if err := publishable(g); err != nil {
			return nil, err
		}
		g.Status = models.GigPublished
	}

	if err := s.DB.WithContext(ctx).Create(g).Error; err != nil {
		return nil, apperr.Internal("could not create gig", err)
	}
	s.changed(ctx, realtime.EventInsert, g, nil)
	return g, nil
}

type UpdateInput struct {
	Title       *string `json:"title" validate:"omitempty,min=5,max=120"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	Category    *string `json:"category" validate:"omitempty,max=60"`
}

func (s *Service) Update(ctx context.Context, sellerID, gigID uuid.UUID, in UpdateInput) (*models.Gig, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	g, err := s.owned(ctx, sellerID, gigID)
	if err != nil {
		return nil, err
	}
	old := *g

	// next is the gig as it would read after the update
	next := *g
	updates := map[string]any{}
	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
		updates["title"] = next.Title
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
		updates["description"] = next.Description
	}
	if in.Price != nil {
		next.Price = *in.Price
		updates["price"] = next.Price
	}
	if in.Category != nil {
		next.Category = strings.ToLower(strings.TrimSpace(*in.Category))
		updates["category"] = next.Category
	}
	if len(updates) == 0 {
		return g, nil
	}

	// a published gig must stay complete
	incomplete := publishable(&next)
	if incomplete != nil && g.Status == models.GigPublished {
		return nil, incomplete
	}
	q := s.DB.WithContext(ctx).Model(&models.Gig{}).Where("id = ?", g.ID)
	if incomplete != nil {
		q = q.Where("status <> ?", models.GigPublished)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, apperr.Internal("could not update gig", res.Error)
	}
	if res.RowsAffected == 0 {
		if incomplete != nil {
			// published since we read it
			return nil, incomplete
		}
		return nil, apperr.NotFound("Gig", nil)
	}
	if err := s.DB.WithContext(ctx).First(g, "id = ?", gigID).Error; err != nil {
		return nil, apperr.Internal("could not reload gig", err)
	}
	s.changed(ctx, realtime.EventUpdate, g, &old)
	return g, nil
}

func (s *Service) Publish(ctx context.Context, sellerID, gigID uuid.UUID) (*models.Gig, error) {
	g, err := s.owned(ctx, sellerID, gigID)
	if err != nil {
		return nil, err
	}
	if err := publishable(g); err != nil {
		return nil, err
	}
	return s.setStatus(ctx, g, models.GigPublished)
}

func (s *Service) Archive(ctx context.Context, sellerID, gigID uuid.UUID) (*models.Gig, error) {
	g, err := s.owned(ctx, sellerID, gigID)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, g, models.GigArchived)
}

// Delete removes a gig that has never been booked.
func (s *Service) Delete(ctx context.Context, sellerID, gigID uuid.UUID) error {
	g, err := s.owned(ctx, sellerID, gigID)
	if err != nil {
		return err
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Booking{}).Where("gig_id = ?", g.ID).Count(&n).Error; err != nil {
		return apperr.Internal("could not check bookings", err)
	}
	if n > 0 {
		return apperr.Conflict("gig has bookings; archive it instead")
	}
	if err := s.DB.WithContext(ctx).Delete(g).Error; err != nil {
		return apperr.Internal("could not delete gig", err)
	}
	s.changed(ctx, realtime.EventDelete, nil, g)
	return nil
}

// AddGalleryImage appends url to the gig's gallery.
func (s *Service) AddGalleryImage(ctx context.Context, sellerID, gigID uuid.UUID, url string) (*models.Gig, error) {
	g, err := s.owned(ctx, sellerID, gigID)
	if err != nil {
		return nil, err
	}
	if len(g.GalleryURLs) >= maxGallery {
		return nil, apperr.Field("file", "gallery is full")
	}
	old := *g
	g.GalleryURLs = append(append([]string{}, g.GalleryURLs...), url)
	if err := s.DB.WithContext(ctx).Model(g).Update("gallery_urls", g.GalleryURLs).Error; err != nil {
		return nil, apperr.Internal("could not update gallery", err)
	}
	s.changed(ctx, realtime.EventUpdate, g, &old)
	return g, nil
}

// Get returns a gig. Drafts and archived gigs are only visible to their
// seller.
func (s *Service) Get(ctx context.Context, viewer uuid.UUID, gigID uuid.UUID) (*models.Gig, error) {
	var g models.Gig
	if err := s.DB.WithContext(ctx).Preload("Seller").First(&g, "id = ?", gigID).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Gig", err)
		}
		return nil, apperr.Internal("could not load gig", err)
	}
	if g.Status != models.GigPublished && g.SellerID != viewer {
		return nil, apperr.NotFound("Gig", nil)
	}
	if g.SellerID != viewer {
		g.Seller.Redact()
	}
	return &g, nil
}

type ListFilter struct {
	Q        string   `json:"q,omitempty"`
	Category string   `json:"category,omitempty"`
	SellerID string   `json:"seller_id,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
	MinPrice int64    `json:"min_price,omitempty"`
	MaxPrice int64    `json:"max_price,omitempty"`
	Sort     string   `json:"sort,omitempty"` // latest | price_low | price_high
	services.Page
}

type ListResult struct {
	Items []models.Gig  `json:"items"`
	Meta  services.Meta `json:"meta"`
}

// ListPublic returns published gigs matching f, served from the listing
// cache when possible.
func (s *Service) ListPublic(ctx context.Context, f ListFilter) (*ListResult, error) {
	f.Page = f.Page.Normalize()
	f.Statuses = []string{string(models.GigPublished)}

	key := s.cacheKey(ctx, f)
	var cached ListResult
	if s.Cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	res, err := s.list(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range res.Items {
		res.Items[i].Seller.Redact()
	}
	if err := s.Cache.Set(ctx, key, res, s.CacheTTL); err != nil {
		logger.WithCtx(ctx).Warn("gig list cache set failed", "err", err)
	}
	return res, nil
}

// ListMine returns every gig of sellerID, optionally narrowed by status.
func (s *Service) ListMine(ctx context.Context, sellerID uuid.UUID, statuses []string, p services.Page) (*ListResult, error) {
	f := ListFilter{SellerID: sellerID.String(), Statuses: statuses, Page: p.Normalize()}
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f ListFilter) (*ListResult, error) {
	q := s.DB.WithContext(ctx).Model(&models.Gig{})

	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.SellerID != "" {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", strings.ToLower(f.Category))
	}
	if term := strings.ToLower(strings.TrimSpace(f.Q)); term != "" {
		like := "%" + term + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if f.MinPrice > 0 {
		q = q.Where("price >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		q = q.Where("price <= ?", f.MaxPrice)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.Internal("could not count gigs", err)
	}

	switch f.Sort {
	case "price_low":
		q = q.Order("price ASC").Order("created_at DESC")
	case "price_high":
		q = q.Order("price DESC").Order("created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}

	items := []models.Gig{}
	if err := q.Preload("Seller").Limit(f.Limit).Offset(f.Page.Offset()).Find(&items).Error; err != nil {
		return nil, apperr.Internal("could not list gigs", err)
	}
	return &ListResult{Items: items, Meta: services.NewMeta(f.Page, total)}, nil
}

// Categories lists the distinct categories of published gigs.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := s.DB.WithContext(ctx).
		Model(&models.Gig{}).
		Where("status = ? AND category <> ''", models.GigPublished).
		Distinct("category").
		Order("category").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, apperr.Internal("could not list categories", err)
	}
	return categories, nil
}

func (s *Service) owned(ctx context.Context, sellerID, gigID uuid.UUID) (*models.Gig, error) {
	var g models.Gig
	if err := s.DB.WithContext(ctx).First(&g, "id = ?", gigID).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Gig", err)
		}
		return nil, apperr.Internal("could not load gig", err)
	}
	if g.SellerID != sellerID {
		return nil, apperr.Forbidden("only the seller can change this gig")
	}
	return &g, nil
}

func (s *Service) setStatus(ctx context.Context, g *models.Gig, status models.GigStatus) (*models.Gig, error) {
	if g.Status == status {
		return g, nil
	}
	old := *g
	if err := s.DB.WithContext(ctx).Model(g).Update("status", status).Error; err != nil {
		return nil, apperr.Internal("could not update gig", err)
	}
	g.Status = status
	s.changed(ctx, realtime.EventUpdate, g, &old)
	return g, nil
}

// changed invalidates cached listings and publishes the change.
func (s *Service) changed(ctx context.Context, event string, g, old *models.Gig) {
	s.Cache.Bump(ctx, cacheNS)
	var rec, prev any
	if g != nil {
		rec = g
	}
	if old != nil {
		prev = old
	}
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, event, rec, prev))
}

func (s *Service) cacheKey(ctx context.Context, f ListFilter) string {
	b, _ := json.Marshal(f)
	sum := sha1.Sum(b)
	return cacheNS + ":list:" + s.Cache.Version(ctx, cacheNS) + ":" + hex.EncodeToString(sum[:])
}

func publishable(g *models.Gig) error {
	fields := apperr.FieldErrors{}
	if strings.TrimSpace(g.Title) == "" {
		fields.Add("title", "is required")
	}
	if strings.TrimSpace(g.Description) == "" {
		fields.Add("description", "is required to publish")
	}
	if g.Price <= 0 {
		fields.Add("price", "must be greater than 0")
	}
	if strings.TrimSpace(g.Category) == "" {
		fields.Add("category", "is required to publish")
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}
