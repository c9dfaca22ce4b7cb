package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
)

type memoryJobStore struct {
	mu     sync.RWMutex
	jobs   map[string]*entity.Job
	timers map[string]*time.Timer
}

// NewMemoryJobStore in-memory job store yaratish
func NewMemoryJobStore() repository.JobStore {
	return &memoryJobStore{
		jobs:   make(map[string]*entity.Job),
		timers: make(map[string]*time.Timer),
	}
}

// Create yangi jobni saqlash
func (m *memoryJobStore) Create(ctx context.Context, job *entity.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return apperror.ErrJobExists
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

// Get jobni olish
func (m *memoryJobStore) Get(ctx context.Context, id string) (*entity.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, apperror.ErrJobNotFound
	}
	return job.Clone(), nil
}

// Save jobni yangilash
func (m *memoryJobStore) Save(ctx context.Context, job *entity.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; !exists {
		return apperror.ErrJobNotFound
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

// List filtr bo'yicha joblar
func (m *memoryJobStore) List(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*entity.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, job.Clone())
	}
	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Delete jobni o'chirish
func (m *memoryJobStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.jobs, id)
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	return nil
}

// Expire removes the job after ttl; a later call replaces the timer.
func (m *memoryJobStore) Expire(ctx context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[id]; !exists {
		return apperror.ErrJobNotFound
	}
	if t, ok := m.timers[id]; ok {
		t.Stop()
	}
	m.timers[id] = time.AfterFunc(ttl, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.jobs, id)
		delete(m.timers, id)
	})
	return nil
}

func sortNewestFirst(jobs []*entity.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
