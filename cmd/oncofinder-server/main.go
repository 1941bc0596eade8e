package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oncofinder/oncofinder/internal/config"
	"github.com/oncofinder/oncofinder/internal/domain/mapview"
	"github.com/oncofinder/oncofinder/internal/domain/provider"
	"github.com/oncofinder/oncofinder/internal/geo"
	"github.com/oncofinder/oncofinder/internal/platform/auth"
	"github.com/oncofinder/oncofinder/internal/platform/blobstore"
	"github.com/oncofinder/oncofinder/internal/platform/db"
	"github.com/oncofinder/oncofinder/internal/platform/middleware"
	"github.com/oncofinder/oncofinder/internal/platform/websearch"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "oncofinder-server",
		Short:         "Pancreatic cancer specialist directory API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(findCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the directory API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

// newLogger writes JSON to stdout, or a console format in development.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return logger
}

// deps holds the process-wide resources shared by every command. pool and
// blobs are nil when their configuration is absent.
type deps struct {
	cfg    *config.Config
	logger zerolog.Logger
	table  *geo.Table
	client *http.Client
	pool   *pgxpool.Pool
	blobs  blobstore.Store
}

func openDeps(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*deps, error) {
	table, err := geo.Default()
	if err != nil {
		return nil, err
	}
	d := &deps{
		cfg:    cfg,
		logger: logger,
		table:  table,
		client: &http.Client{Timeout: cfg.UpstreamTimeout},
	}

	if cfg.DatabaseURL != "" {
		d.pool, err = db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
			Schema:   cfg.DBSchema,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Msg("connected to database")
	}

	if cfg.S3Configured() {
		d.blobs, err = blobstore.NewS3Store(ctx, blobstore.Config{
			Bucket:          cfg.DatasetS3Bucket,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			d.close()
			return nil, fmt.Errorf("configure object storage: %w", err)
		}
	}
	return d, nil
}

func (d *deps) close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// source picks the dataset backend named by DATASET_SOURCE.
func (d *deps) source() (provider.Source, error) {
	switch d.cfg.DatasetSource {
	case config.SourceHTTP:
		return provider.NewHTTPSource(d.cfg.DatasetURL, d.client), nil
	case config.SourceFile:
		return provider.NewFileSource(d.cfg.DatasetFile), nil
	case config.SourceS3:
		if d.blobs == nil {
			return nil, errors.New("s3 dataset source needs DATASET_S3_BUCKET")
		}
		return provider.NewS3Source(d.blobs, d.cfg.DatasetS3Key), nil
	case config.SourcePostgres:
		if d.pool == nil {
			return nil, errors.New("postgres dataset source needs DATABASE_URL")
		}
		return provider.NewRecordStore(d.pool), nil
	default:
		return nil, fmt.Errorf("unknown dataset source %q", d.cfg.DatasetSource)
	}
}

func (d *deps) service() (*provider.Service, error) {
	src, err := d.source()
	if err != nil {
		return nil, err
	}
	return provider.NewService(src, d.table, d.logger), nil
}

// server bundles the HTTP handlers with the middleware that owns
// goroutines, so Stop can release them.
type server struct {
	echo    *echo.Echo
	limiter *middleware.RateLimiter
}

func (s *server) Stop() { s.limiter.Stop() }

type serverParams struct {
	cfg      *config.Config
	logger   zerolog.Logger
	service  *provider.Service
	search   websearch.Finder
	selector *mapview.Selector
	pool     *pgxpool.Pool
	cache    middleware.CacheStore
}

func newServer(p serverParams) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(p.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(p.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: p.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if p.pool != nil {
		e.GET("/health/db", db.HealthHandler(p.pool))
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: p.cfg.RateLimitRPS,
		BurstSize:         p.cfg.RateLimitBurst,
	})

	api := e.Group("/api", limiter.Middleware(), middleware.BodyLimit(p.cfg.BodyLimit))
	v1 := api.Group("/v1", middleware.ETagMiddleware(middleware.DefaultCacheConfig()))

	providers := provider.NewHandler(p.service, p.logger)
	providers.RegisterRoutes(api, v1)

	websearch.NewHandler(p.search, p.logger).RegisterRoutes(api)

	mapview.NewHandler(p.selector, p.logger).
		RegisterRoutes(v1.Group("/map"), middleware.ResponseCacheMiddleware(p.cache, time.Hour))

	if key := auth.NewStaticKey(p.cfg.AdminAPIKey); key != nil {
		providers.RegisterAdminRoutes(v1.Group("/admin", key.Middleware(p.logger)))
	} else {
		p.logger.Warn().Msg("ADMIN_API_KEY not set, admin routes disabled")
	}

	return &server{echo: e, limiter: limiter}
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg)
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode (ENV=development)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	svc, err := d.service()
	if err != nil {
		return err
	}

	cache := middleware.NewInMemoryCacheStore()
	cleanupDone := cache.StartCleanup(ctx, 10*time.Minute)

	search := websearch.NewClient(cfg.SerperAPIKey,
		websearch.WithHTTPClient(d.client),
		websearch.WithURL(cfg.SerperURL),
	)

	srv := newServer(serverParams{
		cfg:      cfg,
		logger:   logger,
		service:  svc,
		search:   search,
		selector: mapview.NewSelector(d.table, cfg.TopologyURL, d.client),
		pool:     d.pool,
		cache:    cache,
	})
	defer srv.Stop()

	// Warm the catalog so the first visitor does not wait on the upstream.
	go svc.Catalog(ctx)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("source", cfg.DatasetSource).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-cleanupDone
	logger.Info().Msg("server stopped")
	return nil
}
