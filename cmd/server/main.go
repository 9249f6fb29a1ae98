package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/georgeshao/fio-dashboard/internal/api"
	"github.com/georgeshao/fio-dashboard/internal/config"
	"github.com/georgeshao/fio-dashboard/internal/filter"
	"github.com/georgeshao/fio-dashboard/internal/gateway"
	"github.com/georgeshao/fio-dashboard/internal/importer"
	"github.com/georgeshao/fio-dashboard/internal/logging"
	"github.com/georgeshao/fio-dashboard/internal/storage"
	"github.com/georgeshao/fio-dashboard/internal/storage/pebbledb"
	"github.com/georgeshao/fio-dashboard/internal/storage/redisstore"
	"github.com/georgeshao/fio-dashboard/internal/storage/sqlite"
)

const bootstrapTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("FIO_DASHBOARD_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sugar, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer sugar.Sync()

	ctx := context.Background()

	// Initialize storage
	store, err := openStore(ctx, cfg)
	if err != nil {
		sugar.Fatalw("Failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
	}
	defer store.Close()

	opts := []gateway.Option{gateway.WithLogger(sugar.Named("gateway"))}
	if cfg.APIToken != "" {
		if err := store.Set(ctx, storage.AuthTokenKey, "Bearer "+cfg.APIToken); err != nil {
			sugar.Fatalw("Failed to store API token", "error", err)
		}
	}
	opts = append(opts, gateway.WithCredentials(gateway.StoredCredentials{Store: store}))

	gw := gateway.New(cfg.Gateway(), opts...)

	engine := filter.New(
		filter.WithStore(store, storage.FilterSelectionKey),
		filter.WithLogger(sugar.Named("filter")),
	)
	if engine.Restore(ctx) {
		sugar.Infow("Restored filter selection", "active", engine.HasActive(), "applied", engine.Applied())
	}

	bootstrap(ctx, gw, engine, sugar)

	im := importer.New(gw, cfg.Importer(), sugar.Named("importer"))

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    4 * importer.MaxFileSize,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Setup routes
	api.SetupRoutes(app, gw, engine, im, sugar.Named("api"))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		sugar.Info("Shutting down server...")
		gw.CancelAll()
		if err := app.Shutdown(); err != nil {
			sugar.Errorw("Error during shutdown", "error", err)
		}
	}()

	// Start server
	sugar.Infow("Starting FIO dashboard server", "addr", cfg.Port, "upstream", cfg.APIURL, "storage", cfg.StorageBackend)
	if err := app.Listen(cfg.Port); err != nil {
		sugar.Fatalw("Failed to start server", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.KV, error) {
	switch cfg.StorageBackend {
	case storage.BackendPebble:
		return pebbledb.New(cfg.StoragePath)
	case storage.BackendSQLite:
		return sqlite.New(cfg.StoragePath)
	case storage.BackendRedis:
		return redisstore.Connect(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case storage.BackendMemory:
		return pebbledb.NewInMemory()
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// bootstrap warms the cache and loads filter options so that restored
// selections are checked against what the upstream still offers. An
// unreachable upstream is logged, not fatal.
func bootstrap(ctx context.Context, gw *gateway.Gateway, engine *filter.Engine, sugar *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	if err := gw.Prefetch(ctx); err != nil {
		sugar.Warnw("Initial prefetch failed", "error", err)
	}

	st := gw.FilterOptionsState()
	if !st.Loaded {
		return
	}
	engine.SetOptions(filter.OptionsFrom(st.Data))
	if dropped := engine.Prune(ctx); dropped > 0 {
		sugar.Infow("Restored selection referenced values no longer offered", "dropped", dropped)
	}
}
