package cli

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

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"training-progress-service/internal/app"
	"training-progress-service/internal/catalog"
	"training-progress-service/internal/config"
	"training-progress-service/internal/domain"
	"training-progress-service/internal/infra/memory"
	"training-progress-service/internal/infra/postgres"
	redisstore "training-progress-service/internal/infra/redis"
	"training-progress-service/internal/infra/resilient"
	"training-progress-service/internal/infra/sqlite"
	transport "training-progress-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the progress server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	files := catalog.NewFileLoader(cfg.Catalog.Path)
	var loader memory.CatalogLoader = files
	if pool != nil {
		loader = chainLoader{postgres.NewCatalogLoader(pool), files}
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalogs app.CatalogRepository
	var learners app.LearnerRegistry
	if redisClient != nil {
		catalogs = redisstore.NewCatalogRepository(redisClient, loader, catalogTTL, logger)
		learners = redisstore.NewLearnerRegistry(redisClient, redisTTL)
	} else {
		catalogs = memory.NewCatalogRepository(loader, catalogTTL)
		learners = memory.NewLearnerRegistry()
	}

	if _, err := catalogs.GetCatalog(ctx, cfg.Catalog.ID); err != nil {
		return fmt.Errorf("catalog %s: %w", cfg.Catalog.ID, err)
	}

	store, closeStore, err := openProgressStore(cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	service := app.NewProgressService(learners, catalogs, store, cfg.Catalog.ID, app.LearnerOptions{
		Logger:        logger,
		VideoFallback: config.TTLDuration(cfg.Engine.VideoFallback, app.DefaultVideoFallback),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, logger).ServeWS)
	transport.NewStatusHandler(service, logger).Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting progress service", "port", finalPort, "catalog", cfg.Catalog.ID, "storage", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openProgressStore builds the configured backend. Networked and on-disk
// stores are wrapped with retry and circuit breaking.
func openProgressStore(cfg config.Config, redisClient *redis.Client, logger *slog.Logger) (app.ProgressStore, func(), error) {
	noop := func() {}
	var (
		store   app.ProgressStore
		closeFn = noop
	)
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewProgressStore(), noop, nil
	case config.BackendRedis:
		store = redisstore.NewProgressStore(redisClient)
	case config.BackendPostgres:
		db := postgres.OpenDB(cfg.Postgres.URL)
		store = postgres.NewProgressStore(db)
		closeFn = func() { _ = db.Close() }
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		store = s
		closeFn = func() { _ = s.Close() }
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	rc := resilient.DefaultConfig()
	rc.MaxAttempts = cfg.Storage.RetryAttempts
	rc.Logger = logger.With("storage", cfg.Storage.Backend)
	return resilient.NewProgressStore(store, rc), closeFn, nil
}

// chainLoader asks each loader in turn until one knows the catalog.
type chainLoader []memory.CatalogLoader

func (c chainLoader) LoadCatalog(ctx context.Context, catalogID string) (*domain.Catalog, error) {
	for _, l := range c {
		cat, err := l.LoadCatalog(ctx, catalogID)
		if errors.Is(err, domain.ErrCatalogNotFound) {
			continue
		}
		return cat, err
	}
	return nil, domain.ErrCatalogNotFound
}
