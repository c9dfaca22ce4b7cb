package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
	"github.com/yourusername/catalog-importer/internal/infrastructure/metrics"
	"github.com/yourusername/catalog-importer/internal/infrastructure/storage"
)

// GuardOptions baza hajmi nazorati parametrlari
type GuardOptions struct {
	WarningPercent  float64
	CriticalPercent float64

	AutoCleanupOnCritical   bool
	PreventImportOnCritical bool
	CleanupOnWarning        bool
	DeleteImages            bool

	BackupTables           []string
	CriticalKeepProducts   int
	WarningKeepProducts    int
	TruncateDescriptionsTo int
	RetentionDays          int
}

// DefaultGuardOptions standart qiymatlar
func DefaultGuardOptions() GuardOptions {
	return GuardOptions{
		WarningPercent:          80,
		CriticalPercent:         95,
		AutoCleanupOnCritical:   true,
		PreventImportOnCritical: true,
		CleanupOnWarning:        false,
		DeleteImages:            true,
		BackupTables: []string{
			storage.TableProducts,
			storage.TableVariants,
			storage.TablePrices,
			storage.TableStocks,
		},
		CriticalKeepProducts:   1000,
		WarningKeepProducts:    5000,
		TruncateDescriptionsTo: 500,
		RetentionDays:          30,
	}
}

func (o GuardOptions) status(percent float64) entity.StorageStatus {
	switch {
	case percent >= o.CriticalPercent:
		return entity.StorageCritical
	case percent >= o.WarningPercent:
		return entity.StorageWarning
	}
	return entity.StorageOK
}

// StorageGuard keeps the catalog database under its capacity ceiling before
// an import opens its transaction. Runs are serialized process-wide.
type StorageGuard struct {
	repo      repository.StorageRepository
	artifacts repository.ArtifactStore
	metrics   *metrics.Metrics
	log       *logrus.Entry
	mu        sync.Mutex
}

// NewStorageGuard yangi guard. artifacts may be nil.
func NewStorageGuard(repo repository.StorageRepository, artifacts repository.ArtifactStore, m *metrics.Metrics) *StorageGuard {
	return &StorageGuard{
		repo:      repo,
		artifacts: artifacts,
		metrics:   m,
		log:       logger.Component("storage"),
	}
}

// Measure reports the current size and status without touching data.
func (g *StorageGuard) Measure(ctx context.Context, opts GuardOptions) (entity.StorageSize, entity.StorageStatus, error) {
	size, err := g.measure(ctx)
	if err != nil {
		return size, entity.StorageOK, err
	}
	return size, opts.status(size.PercentOfLimit), nil
}

// CheckAndManageStorage measures the database and cleans it up when it is
// over a threshold. Its own failures never block the caller; the only refusal
// is a database still critical after cleanup with PreventImportOnCritical set.
// The returned error is non-nil only when ctx was cancelled.
func (g *StorageGuard) CheckAndManageStorage(ctx context.Context, opts GuardOptions) (res entity.GuardResult, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	started := time.Now()
	res = entity.GuardResult{
		CanProceed: true,
		Status:     entity.StorageOK,
		Report:     entity.StorageReport{CheckedAt: started},
	}
	defer func() {
		res.Report.ElapsedMillis = time.Since(started).Milliseconds()
	}()

	if err := apperror.CheckCancelled(ctx, "storage guard"); err != nil {
		return res, err
	}

	before, merr := g.measure(ctx)
	if merr != nil {
		if err := apperror.CheckCancelled(ctx, "storage guard"); err != nil {
			return res, err
		}
		g.note(&res.Report, "measure", merr)
		return res, nil
	}
	res.Report.Before = before
	res.Status = opts.status(before.PercentOfLimit)

	log := g.log.WithFields(logrus.Fields{
		"bytes":   before.Bytes,
		"percent": fmt.Sprintf("%.1f", before.PercentOfLimit),
		"status":  res.Status,
	})

	switch res.Status {
	case entity.StorageCritical:
		log.Warn("Baza hajmi kritik darajada")
		if opts.AutoCleanupOnCritical {
			g.runCleanup(ctx, &res, opts, entity.CleanupOptions{
				DeleteImages:           true,
				RetentionDays:          opts.RetentionDays,
				KeepRecentProducts:     opts.CriticalKeepProducts,
				TruncateDescriptionsTo: opts.TruncateDescriptionsTo,
			}, true)
		}
		if res.Status == entity.StorageCritical && opts.PreventImportOnCritical && len(res.Report.Errors) == 0 {
			res.CanProceed = false
			g.log.WithField("percent", fmt.Sprintf("%.1f", lastPercent(res.Report))).
				Error("Tozalashdan keyin ham baza kritik, import bloklandi")
		}
	case entity.StorageWarning:
		log.Warn("Baza hajmi ogohlantirish darajasida")
		if opts.CleanupOnWarning {
			g.runCleanup(ctx, &res, opts, entity.CleanupOptions{
				DeleteImages:       opts.DeleteImages,
				RetentionDays:      opts.RetentionDays,
				KeepRecentProducts: opts.WarningKeepProducts,
			}, false)
		}
	default:
		log.Debug("Baza hajmi normal")
	}

	if err := apperror.CheckCancelled(ctx, "storage guard"); err != nil {
		return res, err
	}
	return res, nil
}

// runCleanup does backup (when asked), cleanup, vacuum and re-measure, and
// folds every outcome into res.
func (g *StorageGuard) runCleanup(ctx context.Context, res *entity.GuardResult, opts GuardOptions, co entity.CleanupOptions, backup bool) {
	report := &res.Report

	if backup && len(opts.BackupTables) > 0 {
		path, remote, err := g.backup(ctx, opts.BackupTables)
		report.BackupPath = path
		report.BackupRemote = remote
		if err != nil {
			g.note(report, "backup", err)
			if path == "" {
				// no snapshot, no destructive cleanup
				return
			}
		}
	}

	result, err := g.cleanup(ctx, co)
	report.Cleanup = result
	if err != nil {
		g.note(report, "cleanup", err)
		return
	}
	res.CleanupPerformed = true
	g.metrics.Cleanup(string(res.Status))

	after, err := g.measure(ctx)
	if err != nil {
		g.note(report, "re-measure", err)
		return
	}
	report.After = &after
	report.BytesFreed = report.Before.Bytes - after.Bytes
	if report.Before.Bytes > 0 {
		report.PercentFreed = float64(report.BytesFreed) * 100 / float64(report.Before.Bytes)
	}
	res.Status = opts.status(after.PercentOfLimit)

	g.log.WithFields(logrus.Fields{
		"freed_bytes": report.BytesFreed,
		"percent":     fmt.Sprintf("%.1f", after.PercentOfLimit),
		"status":      res.Status,
		"deleted":     result.DeletedRows,
	}).Info("Baza tozalandi")
}

// Cleanup deletes rows in one transaction, then vacuums outside it.
func (g *StorageGuard) Cleanup(ctx context.Context, co entity.CleanupOptions) (*entity.CleanupResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cleanup(ctx, co)
}

func (g *StorageGuard) cleanup(ctx context.Context, co entity.CleanupOptions) (*entity.CleanupResult, error) {
	result := &entity.CleanupResult{DeletedRows: make(map[string]int64)}

	err := g.repo.WithinTx(ctx, func(tx repository.StorageTx) error {
		del := func(c entity.DeleteCriteria) error {
			n, err := tx.DeleteRows(ctx, c)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Table, err)
			}
			result.DeletedRows[c.Table] += n
			return nil
		}

		if co.DeleteImages {
			if err := del(entity.DeleteCriteria{Table: storage.TableImages}); err != nil {
				return err
			}
		}
		if co.RetentionDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -co.RetentionDays)
			for _, table := range []string{storage.TablePrices, storage.TableStocks} {
				err := del(entity.DeleteCriteria{
					Table:              table,
					OlderThan:          cutoff,
					KeepRecentProducts: co.KeepRecentProducts,
				})
				if err != nil {
					return err
				}
			}
		}
		if co.KeepRecentProducts > 0 {
			if err := del(entity.DeleteCriteria{Table: storage.TableProducts, KeepRecentProducts: co.KeepRecentProducts}); err != nil {
				return err
			}
		}
		if co.TruncateDescriptionsTo > 0 {
			n, err := tx.TruncateDescriptions(ctx, co.TruncateDescriptionsTo)
			if err != nil {
				return fmt.Errorf("truncate descriptions: %w", err)
			}
			result.TruncatedDescriptions = n
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	if err := g.repo.Vacuum(ctx); err != nil {
		g.log.WithError(err).Warn("VACUUM bajarilmadi")
		return result, nil
	}
	result.Vacuumed = true
	return result, nil
}

// Backup snapshots tables and uploads the artifact when a remote store is set.
func (g *StorageGuard) Backup(ctx context.Context, tables []string) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.backup(ctx, tables)
}

func (g *StorageGuard) backup(ctx context.Context, tables []string) (string, string, error) {
	path, err := g.repo.SnapshotTables(ctx, tables)
	if err != nil {
		return "", "", fmt.Errorf("snapshot: %w", err)
	}
	g.log.WithFields(logrus.Fields{"path": path, "tables": tables}).Info("Backup yaratildi")

	if g.artifacts == nil {
		return path, "", nil
	}
	remote, err := g.artifacts.Upload(ctx, path)
	if err != nil {
		return path, "", fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	return path, remote, nil
}

// Restore re-inserts a snapshot without overwriting rows. A missing local
// file is fetched from the remote store when one is configured.
func (g *StorageGuard) Restore(ctx context.Context, path string) (*entity.RestoreResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || g.artifacts == nil {
			return nil, fmt.Errorf("backup fayl: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := g.artifacts.Download(ctx, filepath.Base(path), path); err != nil {
			return nil, fmt.Errorf("backup yuklab olinmadi: %w", err)
		}
		g.log.WithField("path", path).Info("Backup tashqi xotiradan olindi")
	}

	res, err := g.repo.RestoreSnapshot(ctx, path)
	if err != nil {
		return nil, err
	}
	g.log.WithFields(logrus.Fields{"inserted": res.Inserted, "skipped": res.Skipped}).Info("Backup tiklandi")
	return res, nil
}

func (g *StorageGuard) measure(ctx context.Context) (entity.StorageSize, error) {
	size, err := g.repo.MeasureSize(ctx)
	if err != nil {
		return size, err
	}
	g.metrics.DBSize(size.Bytes, size.PercentOfLimit)
	return size, nil
}

func (g *StorageGuard) note(report *entity.StorageReport, op string, err error) {
	report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", op, err))
	g.log.WithError(err).WithField("op", op).Error("Storage guard xatosi, import davom etadi")
}
