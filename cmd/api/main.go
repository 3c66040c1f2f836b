package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_search_backend/internal/adapters"
	"crm_search_backend/internal/events"
	apphttp "crm_search_backend/internal/http"
	"crm_search_backend/internal/http/router"
	"crm_search_backend/internal/notification"
	"crm_search_backend/internal/search"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/repository"
	"crm_search_backend/platform/config"
	"crm_search_backend/platform/db"
	"crm_search_backend/platform/logger"
	"crm_search_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "store", cfg.SearchStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	store, health, closeStore := initRecordStore(ctx, cfg, log)
	defer closeStore()

	if cfg.IsBreakerEnabled() {
		store = repository.NewBreakerStore(store, repository.BreakerSettings{
			MaxRequests: cfg.GetBreakerMaxRequests(),
			Interval:    cfg.GetBreakerInterval(),
			Timeout:     cfg.GetBreakerTimeout(),
			TripRatio:   cfg.GetBreakerTripRatio(),
		}, log)
		log.Info("record store circuit breaker enabled", "tripRatio", cfg.GetBreakerTripRatio())
	}

	if cfg.IsRedisEnabled() {
		redisClient, err := repository.NewRedisClient(cfg.GetRedisURL())
		if err != nil {
			log.Error("failed to initialize redis client", "error", err)
			panic("failed to initialize redis client: " + err.Error())
		}
		defer func() { _ = redisClient.Close() }()
		store = repository.NewCachedStore(store, redisClient, cfg.GetSearchCacheTTL(), log)
		log.Info("search result cache enabled", "ttl", cfg.GetSearchCacheTTL())
	} else {
		log.Warn("REDIS_URL not configured; search result cache disabled")
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module turns search failure events into SSE messages
	notificationModule := notification.New(log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.Close()

	failureNotifier := adapters.NewSearchFailureNotifier(eventBus)
	searchModule, err := search.NewModule(store, failureNotifier, cfg, val, log)
	if err != nil {
		log.Error("failed to initialize search module", "error", err)
		panic("failed to initialize search module: " + err.Error())
	}
	go searchModule.Run(ctx)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			searchModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// SSE streams never finish on their own.
		notificationModule.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initRecordStore opens the configured record store. The returned health
// checker is nil when there is nothing external to ping.
func initRecordStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.RecordStore, apphttp.HealthChecker, func()) {
	if cfg.GetSearchStore() == config.StoreMemory {
		mem := repository.NewMemoryStore()
		if seed := cfg.GetSearchSeedFile(); seed != "" {
			if err := mem.LoadSeedFile(seed); err != nil {
				log.Error("failed to load search seed file", "error", err, "path", seed)
				panic("failed to load search seed file: " + err.Error())
			}
			log.Info("in-memory record store seeded", "path", seed)
		} else {
			log.Warn("SEARCH_SEED_FILE not configured; in-memory record store is empty")
		}
		return mem, nil, func() {}
	}

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	log.Info("database connection established")

	sqlDB := db.OpenDB(pool)
	return repository.NewPostgresStore(sqlDB), db.NewPoolAdapter(pool), func() {
		_ = sqlDB.Close()
		pool.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
