package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/cache"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/config"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/db"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/handlers"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/bookings"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/gigs"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/messaging"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/profiles"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/reviews"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/saved"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/storage"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "gigmarket API server",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logger.Setup(os.Getenv("APP_ENV"))
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(gdb); err != nil {
			return err
		}
		logger.Info("migration done")
		return nil
	},
}

var syncRatingsCmd = &cobra.Command{
	Use:   "sync-ratings",
	Short: "Recompute every seller rating from reviews once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		n, err := reviews.New(gdb, nil).SyncRatings(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("ratings synced", "profiles", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncRatingsCmd)
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}

	broker, listCache, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(broker)
	go hub.Run(ctx)

	deps := buildDeps(cfg, gdb, broker, listCache, store, hub)
	deps.Reviews.StartRatingSyncWorker(ctx, cfg.RatingSyncInterval)

	app := handlers.NewApp(deps)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.AppPort, "env", cfg.AppEnv)
		errc <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

// connectRedis returns the redis broker and listing cache when REDIS_ADDR
// is set, and an in-process broker with no cache otherwise.
func connectRedis(ctx context.Context, cfg config.Config) (realtime.Broker, *cache.Cache, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set: realtime is single-instance and listing cache is off")
		return realtime.NewMemoryBroker(), cache.New(nil), nil
	}
	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return realtime.NewRedisBroker(rdb), cache.New(rdb), nil
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			BucketPrefix: cfg.S3BucketPrefix,
			Region:       cfg.S3Region,
			Key:          cfg.S3Key,
			Secret:       cfg.S3Secret,
			Endpoint:     cfg.S3Endpoint,
			URL:          cfg.S3URL,
		})
	case "local", "":
		return storage.NewLocalStore(cfg.StorageLocalDir, cfg.AppBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

func buildDeps(cfg config.Config, gdb *gorm.DB, broker realtime.Broker, listCache *cache.Cache, store storage.Store, hub *realtime.Hub) handlers.Deps {
	return handlers.Deps{
		Config:    cfg,
		Hub:       hub,
		Store:     store,
		Profiles:  profiles.New(gdb, broker),
		Gigs:      gigs.New(gdb, broker, listCache, cfg.ListingCacheTTL),
		Bookings:  bookings.New(gdb, broker),
		Messages:  messaging.New(gdb, broker, cfg.MessagePageSize),
		Reviews:   reviews.New(gdb, broker),
		Saved:     saved.New(gdb, broker),
		AccessLog: !cfg.IsProduction(),
	}
}
