package cmd

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

	"github.com/campus-events/server/internal/api"
	"github.com/campus-events/server/internal/api/handlers"
	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/config"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/domain/users"
	"github.com/campus-events/server/internal/email"
	"github.com/campus-events/server/internal/jobs"
	"github.com/campus-events/server/internal/metrics"
	"github.com/campus-events/server/internal/storage"
	"github.com/campus-events/server/internal/storage/memory"
	"github.com/campus-events/server/internal/storage/postgres"
	redisstore "github.com/campus-events/server/internal/storage/redis"
	"github.com/campus-events/server/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the campus events HTTP server.

The server will:
- Load configuration from the --config file and environment variables
- Apply database migrations when the postgres storage driver is used
- Bootstrap an admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
- Start background jobs (session cleanup, confirmation email) when enabled
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with configuration from env vars
  server serve

  # Local development without PostgreSQL
  STORAGE_DRIVER=memory SESSION_STORE=memory JOBS_ENABLED=false server serve

  # Start on a specific port with debug logging
  server serve --port 9090 --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	return cmd
}

// app is the wired server: handler plus the resources that need starting
// and closing.
type app struct {
	handler http.Handler
	pool    *pgxpool.Pool
	river   *river.Client[pgx.Tx]
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func runServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("storage", cfg.Storage.Driver).Msg("starting campus events server")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	if a.pool != nil {
		dbCollector := metrics.NewDBCollector(a.pool)
		g.Go(func() error {
			dbCollector.Start(gctx, 15*time.Second)
			return nil
		})
	}

	if a.river != nil {
		// river stops through Stop below, not through the signal context
		if err := a.river.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		logger.Info().Msg("background job workers started")
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.river.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("river workers shutdown error")
			} else {
				logger.Info().Msg("background job workers stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           a.handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// buildApp wires storage, sessions, services, jobs and the router for cfg.
func buildApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	metrics.Init(Version, GitCommit, BuildDate)
	a := &app{}

	var (
		repo    storage.Repository
		memRepo *memory.Store
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		memRepo = memory.New()
		repo = memRepo
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
	default:
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)

		if err := postgres.MigrateUp(cfg.Database.URL, ""); err != nil {
			a.Close()
			return nil, err
		}
		pgRepo, err := postgres.NewRepository(pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		repo = pgRepo
	}

	sessionStore, err := newSessionStore(ctx, cfg, repo, memRepo, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	sessions := auth.NewSessions(sessionStore, cfg.Sessions.TTL)
	usersService := users.NewService(repo.Users(), logger)

	if err := bootstrapAdminUser(ctx, cfg, usersService, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}

	var eventOpts []events.Option
	if cfg.Jobs.Enabled && a.pool != nil {
		client, err := newJobClient(ctx, cfg, a.pool, sessions, usersService, repo, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.river = client
		eventOpts = append(eventOpts, events.WithNotifier(jobs.NewRegistrationNotifier(client)))
	}
	eventsService := events.NewService(repo.Events(), logger, eventOpts...)

	var healthOpts []handlers.HealthOption
	if a.pool != nil {
		healthOpts = append(healthOpts, handlers.WithPool(a.pool))
	}
	if a.river != nil {
		healthOpts = append(healthOpts, handlers.WithJobQueue(a.river))
	}

	a.handler = api.NewRouter(api.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Store:    repo,
		Users:    usersService,
		Events:   eventsService,
		Sessions: sessions,
		Health:   handlers.NewHealthChecker(repo, Version, GitCommit, healthOpts...),
		Build:    api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
	})
	return a, nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

func newSessionStore(ctx context.Context, cfg config.Config, repo storage.Repository, memRepo *memory.Store, a *app) (auth.SessionStore, error) {
	switch cfg.Sessions.Store {
	case config.SessionStoreRedis:
		client, err := redisstore.NewClient(ctx, cfg.Sessions.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return redisstore.NewSessionStore(client), nil
	case config.SessionStoreMemory:
		if memRepo != nil {
			return memRepo.Sessions(), nil
		}
		return memory.New().Sessions(), nil
	default:
		return repo.Sessions(), nil
	}
}

func newJobClient(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, sessions *auth.Sessions, usersService *users.Service, repo storage.Repository, logger zerolog.Logger) (*river.Client[pgx.Tx], error) {
	if err := migrateRiver(ctx, pool, rivermigrate.DirectionUp); err != nil {
		return nil, err
	}

	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return nil, err
	}

	workers := jobs.NewWorkers(jobs.WorkerDeps{
		Sessions:      sessions,
		Users:         usersService,
		Registrations: events.NewService(repo.Events(), logger),
		Mailer:        mailer,
		Logger:        logger,
	})
	riverLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := jobs.NewClient(pool, workers, riverLogger,
		[]rivertype.Hook{metrics.NewRiverMetricsHook()},
		jobs.NewPeriodicJobs(cfg.Jobs.SessionCleanupInterval))
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return client, nil
}

func migrateRiver(ctx context.Context, pool *pgxpool.Pool, direction rivermigrate.Direction) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("init river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, direction, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("river migrate %s: %w", direction, err)
	}
	return nil
}

func bootstrapAdminUser(ctx context.Context, cfg config.Config, usersService *users.Service, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Email == "" || bootstrap.Password == "" {
		logger.Debug().Msg("admin bootstrap env vars not set; skipping")
		return nil
	}

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	created, err := usersService.EnsureAdmin(bootCtx, bootstrap.Name, bootstrap.Email, bootstrap.Password)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	// redact email in production to keep PII out of logs
	if cfg.IsProduction() {
		logger.Info().Msg("bootstrapped admin user")
	} else {
		logger.Info().Str("email", bootstrap.Email).Msg("bootstrapped admin user")
	}
	return nil
}
