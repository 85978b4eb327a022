package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/handler"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/metrics"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/middleware"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/service"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/storage"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/store/memory"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/store/postgres"
	redisstore "github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/store/redis"
)

// stores groups the persistence ports used by the services.
type stores struct {
	accounts domain.AccountStore
	content  domain.ContentStore
	photos   domain.PhotoStore
	counters domain.CounterStore
}

func run() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	st, cleanup, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Initialize blob storage
	var blobs storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		blobs, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		blobs, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize services
	usageCounter := service.NewUsageCounter(st.counters, logger)
	quotaGate := service.NewQuotaGate(usageCounter, st.photos, logger, nil)
	accountService := service.NewAccountService(st.accounts, usageCounter, logger, nil)
	contentService := service.NewContentService(accountService, quotaGate, st.content, logger, nil)
	mediaService := service.NewMediaService(accountService, quotaGate, st.photos, blobs, cfg.MaxUploadBytes(), logger, nil)

	// Initialize middleware
	actorMw := middleware.NewActorMiddleware(logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(cfg.Env != "development")
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go limiter.Run(ctx)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountService, contentService, logger)
	contentHandler := handler.NewContentHandler(contentService, logger)
	photoHandler := handler.NewPhotoHandler(mediaService, cfg.MaxUploadBytes(), logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus scrape endpoint
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Locally stored photos
	if cfg.StorageProvider == storage.ProviderLocal {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.LocalStoragePath))))
	}

	// API routes; authenticated ones are rate limited per actor
	protect := middleware.Stack(actorMw.RequireActor, rateLimitMw.Limit)
	accountHandler.RegisterRoutes(mux, protect)
	contentHandler.RegisterRoutes(mux, protect)
	photoHandler.RegisterRoutes(mux, protect)

	// Metrics wraps the mux directly so it sees the matched route pattern
	root := middleware.Stack(
		securityMw.Handler,
		actorMw.WithActor,
		loggingMw.Handler,
		metrics.Middleware,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started",
			"address", server.Addr,
			"env", cfg.Env,
			"store", cfg.StoreBackend,
			"counters", cfg.CounterBackend,
			"storage", cfg.StorageProvider,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")
	stop()

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// openStores connects the configured backends. The returned cleanup closes
// every connection that was opened.
func openStores(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (stores, func(), error) {
	var (
		st      stores
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var pg *postgres.Store
	switch cfg.StoreBackend {
	case internal.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
		if err != nil {
			return st, cleanup, fmt.Errorf("database connection failed: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			cleanup()
			return st, func() {}, fmt.Errorf("database ping failed: %w", err)
		}

		// goose needs database/sql; share the pool's connections
		db := stdlib.OpenDBFromPool(pool)
		err = internal.RunMigrations(ctx, db, logger)
		db.Close()
		if err != nil {
			cleanup()
			return st, func() {}, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")

		pg = postgres.New(pool)
		st.accounts, st.content, st.photos = pg, pg, pg

	case internal.BackendMemory:
		mem := memory.New()
		st.accounts, st.content, st.photos, st.counters = mem, mem, mem, mem
		logger.Warn("using in-memory store; data is lost on restart")
	}

	switch cfg.CounterBackend {
	case internal.BackendPostgres:
		st.counters = pg

	case internal.BackendRedis:
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			cleanup()
			return st, func() {}, err
		}
		closers = append(closers, func() { rdb.Close() })
		st.counters = redisstore.NewCounterStore(rdb, cfg.UsageRetention)
		logger.Info("Redis counter store ready", "addr", cfg.RedisAddr)

	case internal.BackendMemory:
		if st.counters == nil {
			st.counters = memory.New()
		}
	}

	return st, cleanup, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
