package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/accounts"
	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/clients"
	"github.com/clinic/clinic/internal/domain/clinicalnotes"
	"github.com/clinic/clinic/internal/domain/dashboard"
	"github.com/clinic/clinic/internal/domain/doctors"
	"github.com/clinic/clinic/internal/domain/documents"
	"github.com/clinic/clinic/internal/domain/importer"
	"github.com/clinic/clinic/internal/domain/invites"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/internal/platform/telemetry"
)

// backends are the swappable infrastructure adapters. Production uses
// Redis, Kafka, SQS and S3; each falls back to an in-process version when
// its setting is empty.
type backends struct {
	cache     cache.Store
	publisher events.Publisher
	sender    notification.Sender
	blobs     blobstore.Store
}

func localBackends(logger zerolog.Logger) backends {
	return backends{
		cache:     cache.NopStore{},
		publisher: events.NewLogPublisher(logger),
		sender:    notification.NewLogSender(logger),
		blobs:     blobstore.NewMemoryStore(),
	}
}

func connectBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (backends, error) {
	b := localBackends(logger)
	b.cache = cache.NewMemoryStore()

	if cfg.RedisURL != "" {
		store, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return b, err
		}
		b.cache = store
		logger.Info().Msg("calendar cache: redis")
	}
	if len(cfg.KafkaBrokers) > 0 {
		b.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("events: kafka")
	}
	if cfg.NotifyQueue != "" {
		sender, err := notification.NewSQSSender(ctx, cfg.NotifyQueue, cfg.AWSEndpointURL)
		if err != nil {
			return b, err
		}
		b.sender = sender
		logger.Info().Str("queue", cfg.NotifyQueue).Msg("notifications: sqs")
	}
	if cfg.DocumentsBucket != "" {
		store, err := blobstore.NewS3Store(ctx, cfg.DocumentsBucket, cfg.AWSEndpointURL)
		if err != nil {
			return b, err
		}
		b.blobs = store
		logger.Info().Str("bucket", cfg.DocumentsBucket).Msg("documents: s3")
	} else {
		logger.Warn().Msg("DOCUMENTS_BUCKET not set, documents are kept in memory")
	}
	return b, nil
}

type services struct {
	accounts      *accounts.Service
	clients       *clients.Service
	rooms         *rooms.Service
	doctors       *doctors.Service
	appointments  *appointments.Service
	calendar      *calendar.Service
	clinicalNotes *clinicalnotes.Service
	invites       *invites.Service
	documents     *documents.Service
	dashboard     *dashboard.Service
	importer      *importer.Service
}

func newServices(pool *pgxpool.Pool, cfg *config.Config, loc *time.Location, b backends,
	metrics *telemetry.Metrics, logger zerolog.Logger) *services {
	tx := db.NewTxManager(pool)
	emitter := events.NewEmitter(b.publisher, logger, func() { metrics.SideEffectFailed("event") })

	// Password login only exists in jwt mode.
	var tokens *auth.TokenIssuer
	if cfg.ResolvedAuthMode() == "jwt" {
		tokens = auth.NewTokenIssuer([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.JWTTTL)
	}
	accountsSvc := accounts.NewService(accounts.NewRepoPG(pool), tx, auth.NewPasswordHasher(), tokens)

	// The calendar reads repositories directly. Every service whose rows
	// show up in a layout invalidates it on write.
	roomsRepo := rooms.NewRepoPG(pool)
	apptsRepo := appointments.NewRepoPG(pool)
	calendarSvc := calendar.NewService(apptsRepo, roomsRepo, b.cache, calendar.Options{
		Location: loc,
		TTL:      cfg.CalendarCacheTTL,
		Metrics:  metrics,
		Logger:   logger,
	})

	documentsRepo := documents.NewRepoPG(pool)
	clientsSvc := clients.NewService(clients.NewRepoPG(pool), tx, calendarSvc,
		documents.NewPurger(documentsRepo, b.blobs, metrics, logger))
	doctorsSvc := doctors.NewService(doctors.NewRepoPG(pool), emitter, calendarSvc)
	roomsSvc := rooms.NewService(roomsRepo, calendarSvc)
	apptsSvc := appointments.NewService(apptsRepo, tx, appointments.Lookups{
		Clients: clientsSvc,
		Doctors: doctorsSvc,
		Rooms:   roomsSvc,
	}, calendarSvc, emitter, metrics)

	notesSvc := clinicalnotes.NewService(clinicalnotes.NewRepoPG(pool), tx, apptsSvc, emitter, metrics)
	invitesSvc := invites.NewService(invites.NewRepoPG(pool), tx, accountsSvc, doctorsSvc,
		notification.NewNotifier(b.sender, nil), emitter, metrics, invites.Config{
			TTL:        cfg.InviteTTL,
			BaseURL:    cfg.InviteBaseURL,
			ClinicName: cfg.ClinicName,
			Logger:     logger,
		})
	documentsSvc := documents.NewService(documentsRepo, b.blobs, clientsSvc, emitter, metrics, logger)
	dashboardSvc := dashboard.NewService(dashboard.Sources{
		Clients:      clientsSvc,
		Doctors:      doctorsSvc,
		Rooms:        roomsSvc,
		Appointments: apptsSvc,
		Invites:      invitesSvc,
	}, loc)
	importerSvc := importer.NewService(clientsSvc, doctorsSvc, roomsSvc, apptsSvc, emitter, loc, logger)

	return &services{
		accounts:      accountsSvc,
		clients:       clientsSvc,
		rooms:         roomsSvc,
		doctors:       doctorsSvc,
		appointments:  apptsSvc,
		calendar:      calendarSvc,
		clinicalNotes: notesSvc,
		invites:       invitesSvc,
		documents:     documentsSvc,
		dashboard:     dashboardSvc,
		importer:      importerSvc,
	}
}

func (s *services) registerRoutes(api *echo.Group, loc *time.Location) {
	accounts.NewHandler(s.accounts).RegisterRoutes(api)
	clients.NewHandler(s.clients).RegisterRoutes(api)
	documents.NewHandler(s.documents).RegisterRoutes(api)
	rooms.NewHandler(s.rooms).RegisterRoutes(api)
	doctors.NewHandler(s.doctors).RegisterRoutes(api)
	appointments.NewHandler(s.appointments, loc).RegisterRoutes(api)
	calendar.NewHandler(s.calendar).RegisterRoutes(api)
	clinicalnotes.NewHandler(s.clinicalNotes).RegisterRoutes(api)
	invites.NewHandler(s.invites).RegisterRoutes(api)
	dashboard.NewHandler(s.dashboard).RegisterRoutes(api)
	importer.NewHandler(s.importer).RegisterRoutes(api)
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, db.PoolOptions{
		ApplicationName: "clinic-server",
		MaxConnIdleTime: 5 * time.Minute,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Telemetry
	metrics := telemetry.NewMetrics()
	metrics.RegisterPool(pool)
	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		ServiceName:    "clinic-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start tracing")
	}

	// Infrastructure adapters
	b, err := connectBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect backends")
	}
	defer b.cache.Close()
	defer b.publisher.Close()

	svc := newServices(pool, cfg, loc, b, metrics, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(tracing.TracingMiddleware())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "25M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth enabled, requests without a token act as admin_doctor")
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.JWTIssuer,
			SigningKey: []byte(cfg.JWTSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}
	e.Use(auth.RoleLoader(svc.accounts, auth.AuthSkipper))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	svc.registerRoutes(apiV1, loc)

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.Dependency{Name: "cache", Ping: b.cache.Ping}))
	e.GET("/metrics", metrics.Handler())

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
