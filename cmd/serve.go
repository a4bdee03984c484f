package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"orgstock/internal/caching"
	"orgstock/internal/config"
	"orgstock/internal/handlers"
	"orgstock/internal/jobs"
	"orgstock/internal/logger"
	"orgstock/internal/metrics"
	"orgstock/internal/repositories"
	"orgstock/internal/services"
	"orgstock/pkg/database"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	var memory, migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background ledger jobs",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg(), memory, migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "keep all data in process memory instead of Postgres")
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, memory, migrateFirst bool) error {
	log := logger.L()

	var (
		store repositories.Store
		db    handlers.Pinger
	)
	if memory {
		log.Warn("running on the in-memory store; data is lost on exit")
		store = repositories.NewMemoryStore()
	} else {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if migrateFirst {
			if err := database.MigrateUp(cfg.Database.URL); err != nil {
				return fatalf("migration failed", err)
			}
		}
		pool, err := database.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return fatalf("failed to connect to database", err)
		}
		defer pool.Close()
		store = repositories.NewStore(pool)
		db = pool
	}

	cache := caching.NewNoopCacheService()
	locker := caching.NewNoopStockLocker()
	if cfg.Redis.Addr != "" {
		client := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func(client *redis.Client) { _ = client.Close() }(client)
		cache = caching.NewRedisCacheService(client)
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis is unreachable, cache reads will miss", zap.Error(err))
		}
		if cfg.Stock.LockEnabled {
			locker = caching.NewRedisStockLocker(client, cfg.Stock.LockTTL)
		}
	}

	var images services.MinioService
	if cfg.Minio.Endpoint != "" {
		minioSvc, err := services.NewMinioService(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
		if err != nil {
			return fatalf("failed to initialize MinIO", err)
		}
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			log.Warn("image bucket unavailable", zap.String("bucket", cfg.Minio.Bucket), zap.Error(err))
		}
		images = minioSvc
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	categorySvc := services.NewCategoryService(store, cache, cfg.Redis.CacheTTL, m)
	productSvc := services.NewProductService(store, cache, cfg.Redis.CacheTTL, images)
	inventorySvc := services.NewInventoryService(store, cache, locker, m, cfg.Stock.AdjustRetries)

	scheduler, err := jobs.NewJobScheduler(
		jobs.NewLedgerReconciler(inventorySvc, m, 100),
		jobs.NewInventoryAlertService(inventorySvc, m, cfg.Jobs.LowStockThreshold),
		m,
		cfg.Jobs.ReconcileInterval,
	)
	if err != nil {
		return fatalf("failed to create job scheduler", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Warn("job scheduler did not stop cleanly", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()

	e.Use(echoMiddleware.RequestID())
	e.Use(logger.Middleware())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(m.Middleware())

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	handlers.RegisterRoutes(e, &handlers.Handlers{
		Health:     handlers.NewHealthHandlers(db, cache, version),
		Categories: handlers.NewCategoryHandlers(categorySvc),
		Products:   handlers.NewProductHandlers(productSvc),
		Inventory:  handlers.NewInventoryHandlers(inventorySvc),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("orgstock server starting", zap.String("version", version), zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fatalf("server stopped", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
