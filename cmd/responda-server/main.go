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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/responda/responda/internal/config"
	"github.com/responda/responda/internal/domain/draft"
	"github.com/responda/responda/internal/domain/graphql"
	"github.com/responda/responda/internal/domain/nacherfassung"
	"github.com/responda/responda/internal/domain/patientdoc"
	"github.com/responda/responda/internal/domain/pdfreport"
	"github.com/responda/responda/internal/domain/presign"
	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/auth"
	"github.com/responda/responda/internal/platform/blobstore"
	"github.com/responda/responda/internal/platform/db"
	"github.com/responda/responda/internal/platform/jobs"
	"github.com/responda/responda/internal/platform/middleware"
	"github.com/responda/responda/internal/platform/nhost"
)

const version = "0.3.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "responda-server",
		Short:        "Emergency protocol backend for first-responder organizations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSlice("env-file", nil, "Additional .env files to load")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tenantCmd())
	root.AddCommand(renderCmd())
	root.AddCommand(draftsCmd())
	root.AddCommand(submitCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, _ := cmd.Flags().GetStringSlice("env-file")
	return config.Load(files...)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, newLogger(cfg))
		},
	}
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:         cfg.DBMaxConns,
		MinConns:         cfg.DBMinConns,
		StatementTimeout: time.Duration(cfg.DBStatementTimeoutSeconds) * time.Second,
		AppName:          "responda-server",
	})
}

// newBlobStore picks the storage behind the presign relay.
func newBlobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (blobstore.Store, error) {
	switch cfg.StorageBackend {
	case presign.BackendNhost:
		return nhost.NewStorage(nhost.Config{
			StorageURL: cfg.NhostStorageURL,
			AuthURL:    cfg.NhostAuthURL,
			Email:      cfg.NhostServiceEmail,
			Password:   cfg.NhostServicePassword,
			Bucket:     cfg.PatientDocsBucket,
		}, logger)
	case presign.BackendS3:
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newRenderer(cfg *config.Config) *pdfreport.Renderer {
	rd := pdfreport.NewRenderer()
	if loc, err := time.LoadLocation(cfg.TimeZone); err == nil {
		rd.Location = loc
	}
	return rd
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage backend: %w", err)
	}

	draftStore, err := draft.OpenSQLite(ctx, cfg.DraftDBPath)
	if err != nil {
		return fmt.Errorf("open draft store: %w", err)
	}
	defer draftStore.Close()

	renderer := newRenderer(cfg)

	incidents := nacherfassung.NewService(nacherfassung.NewRepoPG(pool), renderer)
	incidents.SetOrganizationName(cfg.OrgName)
	incidents.SetLocation(renderer.Location)

	docs := patientdoc.NewService(patientdoc.NewRepoPG(pool), renderer)
	docs.SetOrganizationName(cfg.OrgName)
	docs.SetRetention(time.Duration(cfg.DocRetentionDays) * 24 * time.Hour)

	drafts := draft.NewService(draftStore, logger)
	uploads := presign.NewService(store, presign.NewRepoPG(pool), cfg.StorageBackend, logger)

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	secCfg := middleware.DefaultSecurityConfig()
	secCfg.HSTS = cfg.IsProduction()
	e.Use(middleware.SecurityHeaders(secCfg))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.TenantHeader},
	}))
	e.Use(middleware.BodyLimit("2M", "25M"))
	e.Use(middleware.RequestTimeout(60 * time.Second))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool, logger))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.Use(limiter.Middleware())
	api.Use(authMiddleware(cfg))
	api.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	api.Use(middleware.Audit(logger))

	patientdoc.NewHandler(docs, incidents).RegisterRoutes(api)
	nacherfassung.NewHandler(incidents).RegisterRoutes(api)
	presign.NewHandler(uploads).RegisterRoutes(api)
	draft.NewHandler(drafts).RegisterRoutes(api)

	if cfg.GraphQLEndpoint != "" {
		proxy, err := graphql.NewProxy(graphql.Config{
			Endpoint:    cfg.GraphQLEndpoint,
			AdminSecret: cfg.GraphQLAdminSecret,
			DefaultRole: cfg.GraphQLDefaultRole,
		}, logger)
		if err != nil {
			return fmt.Errorf("graphql proxy: %w", err)
		}
		proxy.RegisterRoutes(api)
	}

	sched := jobs.New(renderer.Location, 10*time.Minute, logger)
	if err := registerJobs(sched, pool, drafts, docs, limiter, cfg, logger); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		return auth.DevAuthMiddleware()
	}
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jwtCfg)
}

func registerJobs(s *jobs.Scheduler, pool *pgxpool.Pool, drafts *draft.Service, docs *patientdoc.Service,
	limiter *middleware.RateLimiter, cfg *config.Config, logger zerolog.Logger) error {
	ttl := time.Duration(cfg.DraftTTLHours) * time.Hour
	if ttl > 0 {
		if err := s.Every(jobs.JobPruneDrafts, time.Hour, jobs.PruneDrafts(drafts, ttl)); err != nil {
			return err
		}
	}
	if cfg.DocRetentionDays > 0 {
		tenants := func(ctx context.Context) ([]string, error) { return db.TenantSchemas(ctx, pool) }
		in := func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
			return db.InTenant(ctx, pool, tenantID, fn)
		}
		if err := s.Daily(jobs.JobPurgeProtocols, "03:15", jobs.PurgeProtocols(tenants, in, docs, logger)); err != nil {
			return err
		}
	}
	return s.Every(jobs.JobPruneRateLimiter, 5*time.Minute, jobs.PruneRateLimiter(limiter))
}

