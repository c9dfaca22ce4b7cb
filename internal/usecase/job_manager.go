package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
	"github.com/yourusername/catalog-importer/internal/infrastructure/metrics"
)

// DefaultJobRetention terminal joblar shu vaqtdan keyin o'chiriladi
const DefaultJobRetention = time.Hour

const subscriberBuffer = 16

// allowed status transitions; terminal states have none
var transitions = map[entity.JobStatus][]entity.JobStatus{
	entity.JobCreated:    {entity.JobProcessing, entity.JobFailed, entity.JobCancelled},
	entity.JobProcessing: {entity.JobProcessing, entity.JobCompleted, entity.JobFailed, entity.JobCancelled},
}

func canTransition(from, to entity.JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// JobManager owns job state and per-job subscriptions.
type JobManager struct {
	store     repository.JobStore
	retention time.Duration
	metrics   *metrics.Metrics
	log       *logrus.Entry

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	subs    map[string]map[int]chan entity.JobEvent
	nextSub int
}

// NewJobManager yangi job manager
func NewJobManager(store repository.JobStore, retention time.Duration, m *metrics.Metrics) *JobManager {
	if retention <= 0 {
		retention = DefaultJobRetention
	}
	return &JobManager{
		store:     store,
		retention: retention,
		metrics:   m,
		log:       logger.Component("jobs"),
		cancels:   make(map[string]context.CancelFunc),
		subs:      make(map[string]map[int]chan entity.JobEvent),
	}
}

// CreateJob yangi job yaratish
func (m *JobManager) CreateJob(ctx context.Context, id string, metadata map[string]string) (*entity.Job, error) {
	now := time.Now()
	job := &entity.Job{
		ID:        id,
		Status:    entity.JobCreated,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, job); err != nil {
		return nil, err
	}
	m.log.WithField("job_id", id).Info("Job yaratildi")
	return job.Clone(), nil
}

// Attach registers the cancel func of the pipeline running the job.
func (m *JobManager) Attach(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels[id] = cancel
}

// UpdateStatus moves the job to status. Progress is clamped to 0..100 and
// never goes back while processing. A terminal status stamps CompletedAt and
// schedules removal after the retention window.
func (m *JobManager) UpdateStatus(ctx context.Context, id string, status entity.JobStatus, progress int, upd entity.JobUpdate) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(ctx, id, status, progress, upd)
}

func (m *JobManager) updateLocked(ctx context.Context, id string, status entity.JobStatus, progress int, upd entity.JobUpdate) (*entity.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(job.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", apperror.ErrInvalidTransition, job.Status, status)
	}

	now := time.Now()
	progress = min(max(progress, 0), 100)
	if status == entity.JobProcessing && progress < job.Progress {
		progress = job.Progress
	}
	if status == entity.JobProcessing && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status == entity.JobCompleted {
		progress = 100
	}

	job.Status = status
	job.Progress = progress
	job.UpdatedAt = now
	if upd.Stage != "" {
		job.Stage = upd.Stage
	}
	if upd.Error != "" {
		job.Error = upd.Error
	}
	if upd.Errors != nil {
		job.Errors = upd.Errors
	}
	if upd.ErrorsTotal > 0 {
		job.ErrorsTotal = upd.ErrorsTotal
	}
	if upd.Result != nil {
		job.Result = upd.Result
	}
	if upd.Storage != nil {
		job.Storage = upd.Storage
	}
	if status.IsTerminal() {
		job.CompletedAt = &now
	}

	if err := m.store.Save(ctx, job); err != nil {
		return nil, err
	}

	if status.IsTerminal() {
		m.finishLocked(ctx, job)
	} else {
		m.publishLocked(id, entity.JobEvent{Type: entity.EventJobUpdated, Job: job.Clone()})
	}
	return job.Clone(), nil
}

func (m *JobManager) finishLocked(ctx context.Context, job *entity.Job) {
	delete(m.cancels, job.ID)

	start := job.CreatedAt
	if job.StartedAt != nil {
		start = *job.StartedAt
	}
	m.metrics.JobFinished(string(job.Status), job.CompletedAt.Sub(start))

	if err := m.store.Expire(ctx, job.ID, m.retention); err != nil {
		m.log.WithError(err).WithField("job_id", job.ID).Warn("Job muddati belgilanmadi")
	}

	m.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"status":   job.Status,
		"progress": job.Progress,
	}).Info("Job yakunlandi")

	m.publishLocked(job.ID, entity.JobEvent{Type: entity.EventJobUpdated, Job: job.Clone()})
	for sid, ch := range m.subs[job.ID] {
		close(ch)
		delete(m.subs[job.ID], sid)
	}
	delete(m.subs, job.ID)
}

// Cancel requests a cooperative stop. A job with a running pipeline has its
// context cancelled and reaches cancelled when the pipeline observes it; a
// job without one is cancelled directly.
func (m *JobManager) Cancel(ctx context.Context, id string) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.IsCancellable() {
		return nil, fmt.Errorf("%w: %s", apperror.ErrNotCancellable, job.Status)
	}

	job.CancelRequested = true
	job.UpdatedAt = time.Now()
	if err := m.store.Save(ctx, job); err != nil {
		return nil, err
	}
	m.log.WithField("job_id", id).Info("Job bekor qilish so'raldi")
	m.publishLocked(id, entity.JobEvent{Type: entity.EventJobCancelled, Job: job.Clone()})

	if cancel, ok := m.cancels[id]; ok {
		cancel()
		return job.Clone(), nil
	}
	return m.updateLocked(ctx, id, entity.JobCancelled, job.Progress, entity.JobUpdate{Stage: "cancelled"})
}

// GetJob ID bo'yicha job
func (m *JobManager) GetJob(ctx context.Context, id string) (*entity.Job, error) {
	return m.store.Get(ctx, id)
}

// ListJobs newest first
func (m *JobManager) ListJobs(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error) {
	return m.store.List(ctx, filter)
}

// Subscribe returns the job's event stream and the func that ends it. The
// stream is closed after the terminal event or on unsubscribe. Slow readers
// miss events rather than block the pipeline. A job that is already terminal
// yields its final state once; an unknown job yields a closed stream.
func (m *JobManager) Subscribe(id string) (<-chan entity.JobEvent, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan entity.JobEvent, subscriberBuffer)
	job, err := m.store.Get(context.Background(), id)
	if err != nil || job.Status.IsTerminal() {
		if err == nil {
			ch <- entity.JobEvent{Type: entity.EventJobUpdated, Job: job.Clone()}
		}
		close(ch)
		return ch, func() {}
	}

	sid := m.nextSub
	m.nextSub++
	if m.subs[id] == nil {
		m.subs[id] = make(map[int]chan entity.JobEvent)
	}
	m.subs[id][sid] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id][sid]; ok {
				close(c)
				delete(m.subs[id], sid)
				if len(m.subs[id]) == 0 {
					delete(m.subs, id)
				}
			}
		})
	}
}

func (m *JobManager) publishLocked(id string, ev entity.JobEvent) {
	for _, ch := range m.subs[id] {
		select {
		case ch <- ev:
		default:
			m.log.WithField("job_id", id).Debug("Subscriber band, hodisa tashlab yuborildi")
		}
	}
}
