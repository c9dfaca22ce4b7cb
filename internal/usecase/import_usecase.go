package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
	"github.com/yourusername/catalog-importer/internal/infrastructure/metrics"
)

// Progress bands of one run
const (
	progressGuardEnd   = 5
	progressParseEnd   = 20
	progressPersistEnd = 100
)

// ImportOptions import parametrlari
type ImportOptions struct {
	BatchSize      int
	UpdateExisting bool
	SkipImages     bool
	Guard          GuardOptions
}

// ImportUseCase runs supplier feeds through guard, parse and persist as
// background jobs.
type ImportUseCase struct {
	parser    repository.CatalogParser
	store     repository.CatalogStore
	guard     *StorageGuard
	jobs      *JobManager
	persister *Persister
	reports   repository.ReportWriter
	opts      ImportOptions
	log       *logrus.Entry

	wg sync.WaitGroup
}

// NewImportUseCase yangi ImportUseCase yaratish
func NewImportUseCase(
	parser repository.CatalogParser,
	store repository.CatalogStore,
	guard *StorageGuard,
	jobs *JobManager,
	reports repository.ReportWriter,
	m *metrics.Metrics,
	opts ImportOptions,
) *ImportUseCase {
	return &ImportUseCase{
		parser:    parser,
		store:     store,
		guard:     guard,
		jobs:      jobs,
		persister: NewPersister(m),
		reports:   reports,
		opts:      opts,
		log:       logger.Component("import"),
	}
}

// SubmitImport creates a job and runs it in the background. The run outlives
// ctx; it stops only through CancelJob.
func (u *ImportUseCase) SubmitImport(ctx context.Context, raw []byte, metadata map[string]string) (string, error) {
	id := uuid.NewString()
	if _, err := u.jobs.CreateJob(ctx, id, metadata); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	u.jobs.Attach(id, cancel)

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer cancel()
		u.run(runCtx, id, raw)
	}()

	u.log.WithFields(logrus.Fields{"job_id": id, "bytes": len(raw)}).Info("Import navbatga qo'yildi")
	return id, nil
}

// ImportFile runs one feed synchronously and returns the finished job.
// Cancelling ctx cancels the run.
func (u *ImportUseCase) ImportFile(ctx context.Context, path string) (*entity.Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fayl o'qilmadi: %w", err)
	}

	id := uuid.NewString()
	if _, err := u.jobs.CreateJob(ctx, id, map[string]string{"file": filepath.Base(path)}); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	u.jobs.Attach(id, cancel)

	return u.run(runCtx, id, raw), nil
}

// Wait blocks until every background run has finished.
func (u *ImportUseCase) Wait() {
	u.wg.Wait()
}

// GetJob job holati
func (u *ImportUseCase) GetJob(ctx context.Context, id string) (*entity.Job, error) {
	return u.jobs.GetJob(ctx, id)
}

// ListJobs joblar ro'yxati
func (u *ImportUseCase) ListJobs(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error) {
	return u.jobs.ListJobs(ctx, filter)
}

// CancelJob jobni bekor qilish
func (u *ImportUseCase) CancelJob(ctx context.Context, id string) (*entity.Job, error) {
	return u.jobs.Cancel(ctx, id)
}

// Subscribe job hodisalariga obuna
func (u *ImportUseCase) Subscribe(id string) (<-chan entity.JobEvent, func()) {
	return u.jobs.Subscribe(id)
}

// ExportReport renders the job's result as a spreadsheet.
func (u *ImportUseCase) ExportReport(ctx context.Context, id string) ([]byte, string, error) {
	job, err := u.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return u.reports.Render(job)
}

// CheckStorage measures the database without cleaning it.
func (u *ImportUseCase) CheckStorage(ctx context.Context) (entity.StorageSize, entity.StorageStatus, error) {
	return u.guard.Measure(ctx, u.opts.Guard)
}

// jobRun is the state of one pipeline execution.
type jobRun struct {
	u     *ImportUseCase
	id    string
	ctx   context.Context
	store context.Context
	log   *logrus.Entry
	last  int
}

func (u *ImportUseCase) run(ctx context.Context, id string, raw []byte) (job *entity.Job) {
	r := &jobRun{
		u:     u,
		id:    id,
		ctx:   ctx,
		store: context.WithoutCancel(ctx),
		log:   u.log.WithField("job_id", id),
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", rec).Error("Import panic bilan to'xtadi")
			job = r.finish(entity.JobFailed, entity.JobUpdate{
				Stage: "failed",
				Error: fmt.Sprintf("panic: %v", rec),
			})
		}
	}()
	return r.execute(raw)
}

func (r *jobRun) execute(raw []byte) *entity.Job {
	r.progress(0, "guard")

	guard, err := r.u.guard.CheckAndManageStorage(r.ctx, r.u.opts.Guard)
	if err != nil {
		return r.stop(err, nil, entity.JobUpdate{Storage: &guard})
	}
	r.update(progressGuardEnd, entity.JobUpdate{Stage: "parse", Storage: &guard})
	if !guard.CanProceed {
		err := apperror.New(apperror.StorageCritical, "storage guard",
			fmt.Sprintf("database still at %.1f%% of its limit after cleanup", lastPercent(guard.Report)))
		return r.fail(err, "storage", nil)
	}

	graph, err := r.u.parser.Parse(r.ctx, raw)
	if err != nil {
		return r.stop(err, nil, entity.JobUpdate{})
	}
	r.log.WithFields(logrus.Fields{
		"shape":    graph.Shape,
		"products": len(graph.Products),
		"rows":     graph.Total(),
		"errors":   graph.Errors.Total(),
	}).Info("XML o'qildi")
	r.progress(progressParseEnd, "persist")

	tx, err := r.u.store.Begin(r.ctx)
	if err != nil {
		return r.stop(err, nil, entity.JobUpdate{})
	}

	stats, err := r.u.persister.Persist(r.ctx, graph, tx, PersistOptions{
		BatchSize:      r.u.opts.BatchSize,
		UpdateExisting: r.u.opts.UpdateExisting,
		SkipImages:     r.u.opts.SkipImages,
		Errors:         graph.Errors,
		Progress: func(percent int, stage string) {
			r.progress(progressParseEnd+percent*(progressPersistEnd-progressParseEnd)/100, stage)
		},
	})
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.WithError(rbErr).Error("Rollback bajarilmadi")
		}
		return r.stop(err, stats, entity.JobUpdate{})
	}

	if err := apperror.CheckCancelled(r.ctx, "commit"); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.WithError(rbErr).Error("Rollback bajarilmadi")
		}
		return r.stop(err, stats, entity.JobUpdate{})
	}
	if err := tx.Commit(); err != nil {
		return r.stop(err, stats, entity.JobUpdate{})
	}

	r.log.WithFields(logrus.Fields{
		"created":      stats.Created(),
		"processed":    stats.Processed(),
		"errors_total": stats.ErrorsTotal,
		"elapsed":      stats.Elapsed.String(),
	}).Info("Import yakunlandi")

	return r.finish(entity.JobCompleted, entity.JobUpdate{
		Stage:       "done",
		Result:      stats,
		Errors:      stats.Errors,
		ErrorsTotal: stats.ErrorsTotal,
	})
}

// stop ends the run on err: cancelled when the stop was cooperative, failed
// otherwise.
func (r *jobRun) stop(err error, stats *entity.ImportStats, upd entity.JobUpdate) *entity.Job {
	if apperror.IsCancelled(err) {
		r.log.Info("Import bekor qilindi")
		upd.Stage = "cancelled"
		upd.Result = stats
		if stats != nil {
			upd.Errors, upd.ErrorsTotal = stats.Errors, stats.ErrorsTotal
		}
		return r.finish(entity.JobCancelled, upd)
	}

	entityName := ""
	var ae *apperror.Error
	if errors.As(err, &ae) {
		entityName = ae.Entity
	}
	return r.fail(err, entityName, stats)
}

func (r *jobRun) fail(err error, entityName string, stats *entity.ImportStats) *entity.Job {
	log := r.log.WithError(err)
	if apperror.IsFatal(err) {
		log.Error("Import tranzaksiyasi bekor qilindi")
	} else {
		log.Warn("Import muvaffaqiyatsiz")
	}

	typ := apperror.TransactionFatal
	if k, ok := apperror.KindOf(err); ok {
		typ = k
	}
	entries := []entity.ErrorEntry{{Type: typ.String(), Entity: entityName, Message: err.Error()}}
	total := 1
	if stats != nil {
		entries = append(entries, stats.Errors...)
		total += stats.ErrorsTotal
	}
	if len(entries) > entity.DefaultErrorLimit {
		entries = entries[:entity.DefaultErrorLimit]
	}

	return r.finish(entity.JobFailed, entity.JobUpdate{
		Stage:       "failed",
		Error:       err.Error(),
		Errors:      entries,
		ErrorsTotal: total,
		Result:      stats,
	})
}

func (r *jobRun) finish(status entity.JobStatus, upd entity.JobUpdate) *entity.Job {
	job, err := r.u.jobs.UpdateStatus(r.store, r.id, status, r.last, upd)
	if err != nil {
		r.log.WithError(err).WithField("status", status).Error("Job holati saqlanmadi")
		job, _ = r.u.jobs.GetJob(r.store, r.id)
	}
	return job
}

// progress reports a new percentage; unchanged values are not stored.
func (r *jobRun) progress(percent int, stage string) {
	if percent == r.last && percent != 0 {
		return
	}
	r.update(percent, entity.JobUpdate{Stage: stage})
}

func (r *jobRun) update(percent int, upd entity.JobUpdate) {
	if percent > r.last {
		r.last = percent
	}
	if _, err := r.u.jobs.UpdateStatus(r.store, r.id, entity.JobProcessing, r.last, upd); err != nil {
		r.log.WithError(err).Debug("Progress saqlanmadi")
	}
}

func lastPercent(rep entity.StorageReport) float64 {
	if rep.After != nil {
		return rep.After.PercentOfLimit
	}
	return rep.Before.PercentOfLimit
}
