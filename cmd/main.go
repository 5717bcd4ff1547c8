package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-hub/config"
	"github.com/Dosada05/tournament-hub/db"
	"github.com/Dosada05/tournament-hub/handlers"
	"github.com/Dosada05/tournament-hub/hub"
	"github.com/Dosada05/tournament-hub/repositories"
	api "github.com/Dosada05/tournament-hub/routes"
	"github.com/Dosada05/tournament-hub/services"
	"github.com/Dosada05/tournament-hub/storage"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	// Настройка логгера
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("public_url", cfg.PublicURL),
		slog.Bool("planner_http", cfg.PlannerURL != ""),
		slog.Bool("r2", cfg.R2Enabled()),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Журнал неудачных пересылок: Postgres, если задан DSN
	failures := repositories.NewMemoryForwardFailureRepository(0)
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(ctx, cfg.DatabaseURL, 5*time.Second, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer closeDB(dbConn, logger)
		if err := repositories.EnsureForwardFailureSchema(ctx, dbConn); err != nil {
			return err
		}
		failures = repositories.NewPostgresForwardFailureRepository(dbConn)
		logger.Info("database connection established")
	}

	// Долговременный уровень кэша состояний: R2 или локальный каталог
	var store storage.SnapshotStore
	var err error
	if cfg.R2Enabled() {
		store, err = storage.NewCloudflareR2Store(ctx, storage.CloudflareR2StoreConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			Prefix:          cfg.R2Prefix,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 store: %w", err)
		}
		logger.Info("match state stored in Cloudflare R2", slog.String("bucket", cfg.R2BucketName))
	} else {
		store, err = storage.NewDiskSnapshotStore(cfg.StateDir, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize match state directory: %w", err)
		}
		logger.Info("match state stored on disk", slog.String("dir", cfg.StateDir))
	}

	// Маршрутизатор рассылки нужен и сервисам, и шлюзам
	router := hub.NewRouter(logger)

	var forwarder services.Forwarder
	if cfg.PlannerURL != "" {
		forwarder = services.NewPlannerClient(cfg.PlannerURL, cfg.ForwardTimeout)
	} else {
		forwarder = hub.NewAuthoringForwarder(router)
	}

	registry := repositories.NewTournamentRegistry()
	results := services.NewMatchResultService(registry, forwarder, failures, logger, services.MatchResultConfig{
		ForwardTimeout: cfg.ForwardTimeout,
		MaxAttempts:    cfg.MaxForwardAttempts,
	})
	cache := services.NewMatchStateCache(store, logger, services.MatchStateCacheConfig{
		ResumableFor: cfg.ResumableFor,
		MaxAge:       cfg.MaxStateAge,
	})
	defer cache.Flush()
	tournamentService := services.NewTournamentService(registry, results, cache, router, logger, cfg.PublicURL)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	matchStateHandler := handlers.NewMatchStateHandler(tournamentService)
	dashboardHandler := handlers.NewDashboardHandler(tournamentService)
	webSocketHandler := handlers.NewWebSocketHandler(
		hub.NewRoomGateway(router, tournamentService, logger, cfg.AllowedOrigins),
		hub.NewSocketGateway(router, tournamentService, logger, cfg.AllowedOrigins),
	)

	mux := chi.NewRouter()
	api.SetupRoutes(mux, cfg.AllowedOrigins, tournamentHandler, matchStateHandler, dashboardHandler, webSocketHandler)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return server.Close()
		}
		logger.Info("server shutdown complete")
		return nil
	})

	// Планировщики
	schedule(gctx, g, logger, "forward queue drain", cfg.DrainInterval, func(ctx context.Context) {
		stats := results.DrainQueue(ctx)
		if stats.Attempted > 0 {
			logger.Info("Forward queue drained",
				slog.Int("attempted", stats.Attempted),
				slog.Int("delivered", stats.Delivered),
				slog.Int("retrying", stats.Retrying),
				slog.Int("exhausted", stats.Exhausted),
			)
		}
	})
	schedule(gctx, g, logger, "stale tournament cleanup", cfg.StaleCleanupInterval, func(ctx context.Context) {
		tournamentService.CleanupStale(ctx)
	})
	schedule(gctx, g, logger, "match state sweep", cfg.CacheSweepInterval, func(ctx context.Context) {
		stats, err := cache.Sweep(ctx)
		if err != nil {
			logger.Warn("Match state sweep failed", slog.Any("error", err))
			return
		}
		if stats.MemoryDropped > 0 || stats.DurableDeleted > 0 {
			logger.Info("Match state swept",
				slog.Int("memory_dropped", stats.MemoryDropped),
				slog.Int("durable_deleted", stats.DurableDeleted),
			)
		}
	})

	return g.Wait()
}

// schedule runs task every interval until ctx is done.
func schedule(ctx context.Context, g *errgroup.Group, logger *slog.Logger, name string, interval time.Duration, task func(context.Context)) {
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logger.Info("scheduler started", slog.String("task", name), slog.Duration("interval", interval))

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				task(ctx)
			}
		}
	})
}

func closeDB(dbConn *sql.DB, logger *slog.Logger) {
	if err := dbConn.Close(); err != nil {
		logger.Error("failed to close database connection", slog.Any("error", err))
	} else {
		logger.Info("database connection closed")
	}
}
