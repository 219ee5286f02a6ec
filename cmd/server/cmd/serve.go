package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/api"
	"github.com/Togather-Foundation/listsync/internal/api/handlers"
	"github.com/Togather-Foundation/listsync/internal/auth"
	"github.com/Togather-Foundation/listsync/internal/config"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
	"github.com/Togather-Foundation/listsync/internal/metrics"
	"github.com/Togather-Foundation/listsync/internal/realtime"
	"github.com/Togather-Foundation/listsync/internal/realtime/redisrelay"
	"github.com/Togather-Foundation/listsync/internal/storage"
	"github.com/Togather-Foundation/listsync/internal/storage/memory"
	"github.com/Togather-Foundation/listsync/internal/storage/postgres"
	"github.com/Togather-Foundation/listsync/internal/telemetry"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the listsync HTTP server",
	Long: `Start the listsync HTTP server and begin accepting API and websocket
connections.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply pending migrations when DATABASE_MIGRATE_ON_START is set
- Relay broadcasts through Redis when REDIS_URL is set
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  listsync serve

  # Start on a specific host and port
  listsync serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  listsync serve --log-level debug

  # Start with custom config file
  listsync serve --config /etc/listsync/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
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
	logger.Info().Str("storage", cfg.Storage.Driver).Str("env", cfg.Environment).Msg("starting listsync server")

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	metrics.Init(Version, GitCommit, BuildDate)
	logger.Info().Str("version", Version).Msg("metrics initialized")

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if app.relay != nil {
		g.Go(func() error {
			return app.relay.Run(gctx, nil)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return gracefulShutdown(server, cfg.Server.ShutdownTimeout, logger)
	})

	return g.Wait()
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return config.Config{}, err
	}

	// Override logging from flags if provided
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}

// app holds the wired server and everything that must be released on exit.
type app struct {
	handler http.Handler
	relay   *redisrelay.Transport
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp opens storage, binds the broadcast transport and assembles the
// router. The relay, when configured, is returned unstarted.
func buildApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, migrations, err := openStorage(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}

	jwt, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	userService := users.NewService(store.Users(), users.BcryptHasher{Cost: cfg.Auth.BcryptCost}, jwt, logger)

	registry := realtime.NewRegistry(cfg.Realtime.QueueSize, logger)
	broadcaster := realtime.NewBroadcaster(registry, logger)
	if cfg.Realtime.RedisURL != "" {
		client, err := redisrelay.NewClient(ctx, cfg.Realtime.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("realtime relay: %w", err)
		}
		a.closers = append(a.closers, closeRedis(client, logger))
		a.relay = redisrelay.New(client, registry, cfg.Realtime.ChannelPrefix, logger)
		if err := broadcaster.SetTransport(a.relay); err != nil {
			return nil, err
		}
	} else if err := broadcaster.SetTransport(realtime.NewLocalTransport(registry)); err != nil {
		return nil, err
	}

	policy, err := lists.PolicyByName(cfg.Auth.Policy)
	if err != nil {
		return nil, err
	}
	log := activity.NewLog(store.Activity(), logger)
	deps := lists.Deps{
		Repo:    store.Lists(),
		Log:     log,
		Emitter: broadcaster,
		Policy:  policy,
		Logger:  logger,
	}

	a.handler = api.NewRouter(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Lists:    lists.NewListService(deps),
		Items:    lists.NewItemService(deps),
		Activity: log,
		Users:    userService,
		Auth:     auth.NewResolver(jwt, store.Users()),
		Health:   handlers.NewHealthChecker(store, migrations, broadcaster, Version, GitCommit),
		Realtime: realtime.NewWSHandler(broadcaster, cfg.Realtime.AllowedOrigins, logger),
		Build:    api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
	})
	return a, nil
}

func openStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger, a *app) (storage.Repository, handlers.MigrationVersionFunc, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		store := memory.New()
		a.closers = append(a.closers, store.Close)
		return store, nil, nil
	}

	if cfg.Database.MigrateOnStart {
		if err := postgres.MigrateUp(cfg.Database.URL, ""); err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("database migrations applied")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := postgres.Connect(connectCtx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns: cfg.Database.MaxConnections,
		MinConns: cfg.Database.MaxIdle,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	a.closers = append(a.closers, repo.Close)

	// Start database metrics collector (collect every 15 seconds)
	collector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	go collector.Start(collectorCtx, 15*time.Second)
	a.closers = append(a.closers, func() {
		collectorCancel()
		collector.Stop()
	})
	logger.Info().Msg("database metrics collector started")

	url := cfg.Database.URL
	return repo, func() (uint, bool, error) { return postgres.MigrationVersion(url) }, nil
}

func closeRedis(client *redis.Client, logger zerolog.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}
}

func gracefulShutdown(server *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
