package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/file-manager-api/api/swagger"
	"github.com/noah-isme/file-manager-api/internal/handler"
	"github.com/noah-isme/file-manager-api/internal/repository"
	"github.com/noah-isme/file-manager-api/internal/service"
	"github.com/noah-isme/file-manager-api/pkg/cache"
	"github.com/noah-isme/file-manager-api/pkg/config"
	"github.com/noah-isme/file-manager-api/pkg/cursor"
	"github.com/noah-isme/file-manager-api/pkg/database"
	"github.com/noah-isme/file-manager-api/pkg/jobs"
	"github.com/noah-isme/file-manager-api/pkg/logger"
	"github.com/noah-isme/file-manager-api/pkg/storage"
)

// @title File Manager API
// @version 1.0.0
// @description Content-deduplicating file storage with cursor search, bulk ingestion and share links.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	metrics := service.NewMetricsService()
	cacheRepo, redisClient := newCacheRepository(ctx, cfg, logr)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	validate := validator.New()
	fileRepo := repository.NewFileRepository(db)
	userRepo := repository.NewUserRepository(db)
	bulkRepo := repository.NewBulkUploadRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "file-manager-api",
	})
	fileSvc := service.NewFileService(fileRepo, repository.NewAccessLogRepository(db), blobs, cacheSvc, metrics, logr, service.FileServiceConfig{
		MaxFileSize:         cfg.Uploads.MaxFileSizeBytes,
		AllowedExtensions:   cfg.Uploads.AllowedExtensions,
		HashChunkSize:       cfg.Uploads.HashChunkSize,
		PreviewMaxSize:      cfg.Preview.MaxSizeBytes,
		PreviewMaxTextChars: cfg.Preview.MaxTextChars,
	})
	searchSvc := service.NewSearchService(fileRepo, cursor.NewCodec(cfg.Pagination.CursorSecret), cacheSvc, logr, service.SearchConfig{
		DefaultPageSize: cfg.Pagination.DefaultPageSize,
		MaxPageSize:     cfg.Pagination.MaxPageSize,
		CacheTTL:        cfg.Cache.TTL,
	})
	bulkSvc := service.NewBulkUploadService(bulkRepo, fileRepo, fileSvc, blobs, nil, metrics, logr, service.BulkUploadConfig{
		MaxFiles:        cfg.BulkUploads.MaxFiles,
		ItemTimeout:     cfg.BulkUploads.ItemTimeout,
		StagingTTL:      cfg.BulkUploads.StagingTTL,
		CleanupInterval: cfg.BulkUploads.CleanupInterval,
	})

	queue := jobs.NewQueue("bulk-upload", bulkSvc.Handle, jobs.QueueConfig{
		Workers:     cfg.BulkUploads.WorkerConcurrency,
		BufferSize:  cfg.BulkUploads.MaxFiles * 4,
		MaxRetries:  cfg.BulkUploads.WorkerRetries,
		RetryDelay:  cfg.BulkUploads.RetryDelay,
		OnExhausted: bulkSvc.OnExhausted,
		Logger:      logr,
	})
	bulkSvc.SetQueue(queue)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	queue.Start(workerCtx)
	defer queue.Stop()
	bulkSvc.RecoverPendingJobs(ctx)
	bulkSvc.StartStagingCleanup(workerCtx)

	var shares *handler.ShareHandler
	if cfg.Shares.Enabled {
		signer := storage.NewSignedURLSigner(cfg.Shares.SigningSecret, cfg.Shares.DefaultTTL)
		shareSvc := service.NewShareService(repository.NewShareRepository(db), fileSvc, signer, logr, service.ShareConfig{
			DefaultTTL: cfg.Shares.DefaultTTL,
			MaxTTL:     cfg.Shares.MaxTTL,
		})
		shares = handler.NewShareHandler(shareSvc, validate, cfg.APIPrefix+"/shared")
	}

	r := newRouter(cfg, logr, routes{
		tokens:  authSvc,
		metrics: metrics,
		auth:    handler.NewAuthHandler(authSvc),
		files:   handler.NewFileHandler(fileSvc, searchSvc, validate, cfg.Uploads.MaxFileSizeBytes),
		bulk:    handler.NewBulkUploadHandler(bulkSvc, int64(cfg.BulkUploads.MaxFiles)*cfg.Uploads.MaxFileSizeBytes+(1<<20)),
		shares:  shares,
		ops:     handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient, blobs)...),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (service.BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendS3:
		return storage.NewS3Storage(ctx, cfg.Storage.S3)
	case config.StorageBackendLocal, "":
		return storage.NewLocalStorage(cfg.Storage.Dir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newCacheRepository prefers Redis and falls back to the in-process LRU when Redis is unreachable.
func newCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CacheRepository, *redis.Client) {
	if cfg.Cache.Backend == config.CacheBackendRedis {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err == nil {
			return repository.NewCacheRepository(client), client
		}
		logr.Sugar().Warnw("redis unavailable, using in-memory cache", "error", err)
	}
	return repository.NewMemoryCacheRepository(cfg.Cache.MemorySize, cfg.Cache.TTL), nil
}

func readinessChecks(db *sqlx.DB, client *redis.Client, blobs service.BlobStore) []handler.ReadinessCheck {
	checks := []handler.ReadinessCheck{
		{Name: "database", Check: db.PingContext},
		{Name: "storage", Check: func(ctx context.Context) error {
			_, err := blobs.Exists(ctx, "healthcheck")
			return err
		}},
	}
	if client != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "cache", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return checks
}
