package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yourusername/catalog-importer/config"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
	"github.com/yourusername/catalog-importer/internal/infrastructure/metrics"
	"github.com/yourusername/catalog-importer/internal/infrastructure/parser"
	"github.com/yourusername/catalog-importer/internal/infrastructure/report"
	"github.com/yourusername/catalog-importer/internal/infrastructure/storage"
	"github.com/yourusername/catalog-importer/internal/usecase"
)

// app holds every wired component of one process.
type app struct {
	cfg     *config.Config
	db      *gorm.DB
	redis   *redis.Client
	metrics *metrics.Metrics
	guard   *usecase.StorageGuard
	imports *usecase.ImportUseCase
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logger()); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	log := logger.Component("main")

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("data papka yaratilmadi: %w", err)
	}
	db, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, metrics: metrics.New()}

	var jobs repository.JobStore
	switch cfg.JobStore {
	case "redis":
		client, err := storage.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			a.close()
			return nil, err
		}
		a.redis = client
		jobs = storage.NewRedisJobStore(client)
		log.WithField("addr", cfg.RedisAddr).Info("Job store: redis")
	default:
		jobs = storage.NewMemoryJobStore()
		log.Info("Job store: memory")
	}

	var artifacts repository.ArtifactStore
	if mc, ok := cfg.Minio(); ok {
		artifacts, err = storage.NewMinioArtifactStore(ctx, mc)
		if err != nil {
			a.close()
			return nil, err
		}
		log.WithField("bucket", mc.Bucket).Info("Backup MinIO ga yuklanadi")
	}

	a.guard = usecase.NewStorageGuard(
		storage.NewSQLiteStorageRepository(db, cfg.StorageLimitBytes(), cfg.BackupDir),
		artifacts,
		a.metrics,
	)
	a.imports = usecase.NewImportUseCase(
		parser.NewXMLParser(cfg.Parser()),
		storage.NewSQLiteCatalogStore(db),
		a.guard,
		usecase.NewJobManager(jobs, cfg.JobRetention, a.metrics),
		report.NewXLSXReportWriter(),
		a.metrics,
		cfg.Import(),
	)
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Component("main").WithError(err).Warn("Redis yopilmadi")
		}
	}
	if err := storage.Close(a.db); err != nil {
		logger.Component("main").WithError(err).Warn("Baza yopilmadi")
	}
	logger.Close()
}
