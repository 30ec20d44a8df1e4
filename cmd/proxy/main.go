// Rental proxy - holds the platform API key on behalf of storefronts, serves
// the project catalog and quotes, and runs the order-creation actions.
// Designed for Cloud Run deployment with stateless operation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rentsync/internal/booqable"
	"rentsync/internal/catalog"
	"rentsync/internal/clientinfo"
	"rentsync/internal/config"
	"rentsync/internal/handler"
	"rentsync/internal/idmap"
	"rentsync/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("company", cfg.Rental.CompanySlug),
		slog.String("environment", cfg.Environment),
		slog.String("shop_domain", cfg.ShopDomain()),
		slog.String("timezone", cfg.Timezone),
	)

	platform, err := booqable.New(booqable.Config{
		BaseURL: cfg.Rental.APIBaseURL,
		ShopURL: cfg.Rental.ShopURL,
		APIKey:  cfg.Rental.APIKey,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating platform adapter: %w", err)
	}

	var checks []func(context.Context) error

	// Slug to id mapping, shared through Redis when configured
	var cache idmap.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing redis URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		cache = idmap.NewRedisCache(rdb)
		checks = append(checks, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	resolver := idmap.NewResolver(platform, cache, idmap.Options{
		Namespace: cfg.Rental.CompanySlug,
		Logger:    logger,
	})

	repo, closeCatalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()
	if p, ok := repo.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, p.Ping)
	}

	gate, err := clientinfo.NewGate(cfg.MinClientVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum client version: %w", err)
	}

	h := handler.New(platform, handler.Options{
		Catalog:    repo,
		Resolver:   resolver,
		ProxyToken: cfg.Rental.ProxyToken,
		Gate:       gate,
		Ready:      allReady(checks),
		Location:   cfg.Location(),
		Storefront: handler.StorefrontConfig{
			CompanySlug:      cfg.Rental.CompanySlug,
			ShopURL:          cfg.Rental.ShopURL,
			WidgetScriptURL:  cfg.Rental.WidgetScriptURL,
			MinClientVersion: cfg.MinClientVersion,
		},
	}, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → logging → CORS → client identity → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.CORS(cfg.AllowedOrigins),
		clientinfo.Middleware(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpHandler, "rental-proxy"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// openCatalog opens the Postgres catalog when DATABASE_URL is set, the JSON
// file catalog when CATALOG_FILE is set, and runs without a catalog otherwise.
func openCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Repository, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		if err := catalog.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, nil, fmt.Errorf("migrating catalog: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to catalog database: %w", err)
		}
		logger.Info("catalog backed by postgres")
		return catalog.NewPostgresRepository(pool), pool.Close, nil

	case cfg.CatalogFile != "":
		repo, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading catalog: %w", err)
		}
		logger.Info("catalog loaded from file", slog.String("path", cfg.CatalogFile))
		return repo, func() {}, nil

	default:
		logger.Warn("no catalog configured; catalog routes answer 404")
		return nil, func() {}, nil
	}
}

// allReady reports the first failing check.
func allReady(checks []func(context.Context) error) func(context.Context) error {
	if len(checks) == 0 {
		return nil
	}
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
