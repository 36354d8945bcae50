package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/querycache"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/gigs"
)

// Cached serves gig and profile reads through a query cache and
// invalidates them after writes. Other calls go straight to the Client.
type Cached struct {
	*Client
	Cache *querycache.Cache
}

func NewCached(c *Client, staleTime time.Duration) *Cached {
	return &Cached{Client: c, Cache: querycache.New(staleTime)}
}

func (c *Cached) ListGigs(ctx context.Context, f gigs.ListFilter) (*gigs.ListResult, error) {
	key := querycache.Key{"gigs", "list", gigQuery(f).Encode()}
	return querycache.Fetch(ctx, c.Cache, key, 0, func(ctx context.Context) (*gigs.ListResult, error) {
		return c.Client.ListGigs(ctx, f)
	})
}

func (c *Cached) GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	key := querycache.Key{"gigs", "detail", id.String()}
	return querycache.Fetch(ctx, c.Cache, key, 0, func(ctx context.Context) (*models.Gig, error) {
		return c.Client.GetGig(ctx, id)
	})
}

func (c *Cached) Me(ctx context.Context) (*models.Profile, error) {
	return querycache.Fetch(ctx, c.Cache, querycache.Key{"profile", "me"}, 0, c.Client.Me)
}

func (c *Cached) CreateGig(ctx context.Context, in gigs.CreateInput) (*models.Gig, error) {
	g, err := c.Client.CreateGig(ctx, in)
	if err != nil {
		return nil, err
	}
	c.gigChanged(g)
	return g, nil
}

func (c *Cached) PublishGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	g, err := c.Client.PublishGig(ctx, id)
	if err != nil {
		return nil, err
	}
	c.gigChanged(g)
	return g, nil
}

// Login drops everything cached for the previous identity.
func (c *Cached) Login(ctx context.Context, email, password string) (*Auth, error) {
	a, err := c.Client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.Cache.Invalidate()
	c.Cache.SetData(querycache.Key{"profile", "me"}, &a.Profile)
	return a, nil
}

func (c *Cached) gigChanged(g *models.Gig) {
	c.Cache.Invalidate("gigs", "list")
	c.Cache.SetData(querycache.Key{"gigs", "detail", g.ID.String()}, g)
}
