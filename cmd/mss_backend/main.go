package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/SscSPs/money_sync_app/cmd/docs"
	"github.com/SscSPs/money_sync_app/internal/adapters/blobstore/gcs"
	"github.com/SscSPs/money_sync_app/internal/adapters/blobstore/gdrive"
	"github.com/SscSPs/money_sync_app/internal/adapters/blobstore/local"
	"github.com/SscSPs/money_sync_app/internal/adapters/database/memory"
	"github.com/SscSPs/money_sync_app/internal/adapters/database/pgsql"
	"github.com/SscSPs/money_sync_app/internal/adapters/database/sqlite"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/core/services"
	"github.com/SscSPs/money_sync_app/internal/handlers"
	"github.com/SscSPs/money_sync_app/internal/middleware"
	"github.com/SscSPs/money_sync_app/internal/platform/config"
	"github.com/SscSPs/money_sync_app/internal/repositories/ledger"
	"github.com/SscSPs/money_sync_app/internal/scheduler"
	"github.com/SscSPs/money_sync_app/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

// @title Money Sync API
// @version 1.0
// @description Personal finance ledger with encrypted backup and merge sync.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openLedgerStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	uow := ledger.NewUnitOfWork(store)

	// The Drive store needs the connector before the container exists.
	var google portssvc.GoogleDriveConnectorSvc
	if cfg.SyncProvider == config.SyncProviderGDrive {
		google = services.NewGoogleDriveConnector(cfg)
	}
	remote, closeRemote, err := openRemoteStore(ctx, cfg, google)
	if err != nil {
		return err
	}
	defer closeRemote()

	worker := scheduler.NewStatusWorker(scheduler.StatusWorkerConfig{
		WorkerCount: cfg.StatusWorkerCount,
		MaxRetries:  3,
		Logger:      logger,
	})

	options := []services.ContainerOption{services.WithContainerStatusQueue(worker)}
	if remote != nil {
		options = append(options, services.WithRemoteStore(remote))
	}
	if google != nil {
		options = append(options, services.WithGoogleDrive(google))
	}
	container, err := services.NewServiceContainer(cfg, uow, options...)
	if err != nil {
		return err
	}

	if err := container.Category.EnsureDefaultCategories(ctx); err != nil {
		return err
	}
	if err := worker.Start(ctx, container.Transaction); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := worker.Stop(stopCtx); err != nil {
			logger.Warn("Status worker did not drain", slog.String("error", err.Error()))
		}
	}()

	var routeOptions []handlers.RouteOption
	if container.Sync != nil {
		sched, err := scheduler.NewSyncScheduler(container.Sync, scheduler.SyncSchedulerConfig{
			Interval:     cfg.SyncInterval,
			MaxRetries:   cfg.SyncMaxRetries,
			RetryBackoff: cfg.SyncRetryBackoff,
			RunOnStartup: true,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Shutdown(shutdownTimeout)
		routeOptions = append(routeOptions, handlers.WithSyncTrigger(sched))
	} else {
		logger.Info("Sync disabled, no remote provider configured")
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if cfg.RateLimit != "" {
		globalLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			return err
		}
		r.Use(middleware.RateLimit(globalLimiter))
	}

	if err := r.SetTrustedProxies(nil); err != nil {
		return err
	}
	if err := handlers.RegisterRoutes(r, cfg, container, routeOptions...); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openLedgerStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (portsrepo.LedgerStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Using the in-memory ledger store, data is lost on restart")
		return memory.NewStore(), func() {}, nil

	case config.StorePostgres:
		logger.Info("Running database migrations...")
		if err := pgsql.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}
		pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, database.WithPing(cfg.EnableDBCheck))
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Database connection pool established.")
		return pgsql.NewStore(pool), pool.Close, nil

	default:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Opened SQLite ledger", slog.String("path", cfg.SQLitePath))
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("Error closing SQLite ledger", slog.String("error", err.Error()))
			}
		}, nil
	}
}

// openRemoteStore returns a nil store when sync is disabled.
func openRemoteStore(ctx context.Context, cfg *config.Config, google portssvc.GoogleDriveConnectorSvc) (portsrepo.RemoteBlobStore, func(), error) {
	noop := func() {}
	switch cfg.SyncProvider {
	case config.SyncProviderLocal:
		store, err := local.NewStore(cfg.SyncLocalDir)
		return store, noop, err
	case config.SyncProviderGCS:
		store, err := gcs.NewStore(ctx, cfg.SyncGCSBucket)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.SyncProviderGDrive:
		return gdrive.NewConnectedStore(google), noop, nil
	}
	return nil, noop, nil
}
