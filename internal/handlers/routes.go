package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/config"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/metrics"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/middleware"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/bookings"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/gigs"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/messaging"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/profiles"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/reviews"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/saved"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/storage"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Config   config.Config
	Hub      *realtime.Hub
	Store    storage.Store
	Profiles *profiles.Service
	Gigs     *gigs.Service
	Bookings *bookings.Service
	Messages *messaging.Service
	Reviews  *reviews.Service
	Saved    *saved.Service

	// AuthRateLimit caps auth requests per IP per minute; 0 means 20.
	AuthRateLimit int
	// AccessLog enables the per-request console line.
	AccessLog bool
}

// NewApp builds the fiber app with every route mounted under /api, plus
// /ws/realtime, /healthz and /metrics.
func NewApp(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		AppName:      "gigmarket",
		ErrorHandler: ErrorHandler,
		BodyLimit:    25 << 20,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.InjectLogger())
	if d.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	if cfg.StorageDriver == "local" && cfg.StorageLocalDir != "" {
		app.Static("/uploads", cfg.StorageLocalDir)
	}
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	authH := &AuthHandler{
		Profiles:     d.Profiles,
		JWTSecret:    cfg.JWTSecret,
		Expires:      cfg.JWTExpiresMin,
		SecureCookie: cfg.IsProduction(),
	}
	googleH := &GoogleOAuthHandler{
		Auth:            authH,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: strings.TrimRight(cfg.FrontendBaseURL, "/"),
	}
	profileH := &ProfileHandler{Auth: authH, Reviews: d.Reviews, Store: d.Store}
	categoryH := NewCategoryHandler(d.Gigs)
	gigH := NewGigHandler(d.Gigs, d.Store)
	bookingH := NewBookingHandler(d.Bookings, d.Reviews)
	chatH := NewChatHandler(d.Messages)
	savedH := &SavedHandler{Saved: d.Saved}
	uploadH := NewUploadHandler(d.Store)

	authLimit := d.AuthRateLimit
	if authLimit <= 0 {
		authLimit = 20
	}
	limitAuth := limiter.New(limiter.Config{
		Max:        authLimit,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "too many requests, try again later",
			})
		},
	})

	api := app.Group("/api")
	optional := middleware.OptionalJWT(cfg.JWTSecret)

	// public
	auth := api.Group("/auth", limitAuth)
	auth.Post("/signup", authH.Signup)
	auth.Post("/login", authH.Login)
	auth.Post("/logout", authH.Logout)
	auth.Get("/google/start", googleH.GoogleStart)
	auth.Get("/google/callback", googleH.GoogleCallback)

	api.Get("/categories", categoryH.GetCategories)
	api.Get("/gigs", gigH.List)
	api.Get("/gigs/:id", optional, gigH.Get)
	api.Get("/profiles/:id/reviews", profileH.ListReviews)
	api.Get("/profiles/:id/rating", profileH.Rating)
	api.Get("/profiles/:username", optional, profileH.GetByUsername)

	// protected (JWT), attached per route so unknown /api paths still 404
	protected := guarded{
		r:      api,
		before: []fiber.Handler{middleware.JWT(cfg.JWTSecret), middleware.AttachJWTLocals()},
	}
	seller := middleware.RequireRoles(string(models.RoleSeller))
	buyer := middleware.RequireRoles(string(models.RoleBuyer))

	protected.Get("/me", authH.Me)
	protected.Patch("/profiles/me", profileH.UpdateMe)
	protected.Post("/profiles/me/avatar", profileH.UploadAvatar)

	protected.Post("/gigs", seller, gigH.Create)
	protected.Put("/gigs/:id", seller, gigH.Update)
	protected.Post("/gigs/:id/publish", seller, gigH.Publish)
	protected.Post("/gigs/:id/archive", seller, gigH.Archive)
	protected.Delete("/gigs/:id", seller, gigH.Delete)
	protected.Post("/gigs/:id/gallery", seller, gigH.UploadGallery)
	protected.Get("/seller/gigs", seller, gigH.ListMine)
	protected.Get("/seller/dashboard", seller, bookingH.Dashboard)

	protected.Post("/bookings", buyer, bookingH.Create)
	protected.Get("/bookings", bookingH.List)
	protected.Get("/bookings/:id", bookingH.Get)
	protected.Post("/bookings/:id/transition", bookingH.Transition)
	protected.Post("/bookings/:id/cancel", bookingH.Cancel)
	protected.Post("/bookings/:id/review", buyer, bookingH.Review)

	protected.Get("/conversations", chatH.Conversations)
	protected.Get("/conversations/:userId/messages", chatH.History)
	protected.Post("/conversations/:userId/messages", chatH.Send)
	protected.Post("/conversations/:userId/read", chatH.MarkRead)
	protected.Get("/messages/unread", chatH.UnreadCount)

	protected.Get("/saved-sellers", buyer, savedH.List)
	protected.Put("/saved-sellers/:sellerId", buyer, savedH.Save)
	protected.Delete("/saved-sellers/:sellerId", buyer, savedH.Unsave)

	protected.Post("/uploads/:bucket", uploadH.Upload)
	protected.Post("/uploads/:bucket/presign", uploadH.Presign)

	// websocket: token from cookie, bearer header or ?token=
	app.Get("/ws/realtime",
		middleware.JWT(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
		realtime.Upgrade(),
		d.Hub.Handler(),
	)

	app.Use(NotFound)
	return app
}

// guarded registers routes on r with the before handlers in front.
type guarded struct {
	r      fiber.Router
	before []fiber.Handler
}

func (g guarded) add(method, path string, h ...fiber.Handler) {
	chain := make([]fiber.Handler, 0, len(g.before)+len(h))
	chain = append(append(chain, g.before...), h...)
	g.r.Add(method, path, chain...)
}

func (g guarded) Get(path string, h ...fiber.Handler)    { g.add(fiber.MethodGet, path, h...) }
func (g guarded) Post(path string, h ...fiber.Handler)   { g.add(fiber.MethodPost, path, h...) }
func (g guarded) Put(path string, h ...fiber.Handler)    { g.add(fiber.MethodPut, path, h...) }
func (g guarded) Patch(path string, h ...fiber.Handler)  { g.add(fiber.MethodPatch, path, h...) }
func (g guarded) Delete(path string, h ...fiber.Handler) { g.add(fiber.MethodDelete, path, h...) }
