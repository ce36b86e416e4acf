// Command fieldgate serves the permission matrix admin API with an
// in-memory store, together with a sample cost voucher resource whose
// fields are filtered by the caller's role.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/xraph/forge"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/api"
	"github.com/xraph/fieldgate/cache"
	"github.com/xraph/fieldgate/metrics"
	"github.com/xraph/fieldgate/seed"
	"github.com/xraph/fieldgate/store/memory"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := loadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	collector := metrics.New(nil)

	engCfg := fieldgate.DefaultConfig()
	engCfg.StrictSave = cfg.StrictSave

	opts := []fieldgate.Option{
		fieldgate.WithLogger(logger),
		fieldgate.WithConfig(engCfg),
		fieldgate.WithStore(memory.New()),
		fieldgate.WithPlugin(collector),
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisFromURL(ctx, cfg.RedisURL,
			cache.WithRedisTTL(cfg.CacheTTL),
			cache.WithRedisLogger(logger),
		)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rc.Close()
		opts = append(opts, fieldgate.WithCache(rc))
	} else if cfg.CacheTTL > 0 {
		opts = append(opts, fieldgate.WithCache(cache.NewMemory(cache.WithTTL(cfg.CacheTTL))))
	}

	eng, err := fieldgate.NewEngine(opts...)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	if err := eng.Store().Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if cfg.Seed {
		if _, err := seed.ApplyDefault(ctx, eng); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	router := forge.NewRouter()
	if err := api.New(eng, router, api.WithAdminRoles(cfg.AdminRoles...)).RegisterRoutes(router); err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}
	if err := newVoucherBook(eng).registerRoutes(router, eng, cfg.AdminRoles); err != nil {
		log.Fatalf("Failed to register voucher routes: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/", withBearerRole(cfg.Tokens, router.Handler()))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("fieldgate: listening", slog.String("addr", cfg.Addr), slog.Int("tokens", len(cfg.Tokens)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("fieldgate: shutdown", slog.String("error", err.Error()))
	}
	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Error("fieldgate: stop engine", slog.String("error", err.Error()))
	}
}
