package repository

import (
	"context"
	"time"

	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

// JobStore import joblarni saqlash uchun interface
type JobStore interface {
	// Create yangi job; apperror.ErrJobExists if the ID is taken
	Create(ctx context.Context, job *entity.Job) error

	// Get ID bo'yicha job; apperror.ErrJobNotFound if absent
	Get(ctx context.Context, id string) (*entity.Job, error)

	// Save overwrites an existing job
	Save(ctx context.Context, job *entity.Job) error

	// List filtr bo'yicha joblar, newest first
	List(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error)

	// Delete jobni o'chirish
	Delete(ctx context.Context, id string) error

	// Expire schedules removal of the job after ttl
	Expire(ctx context.Context, id string, ttl time.Duration) error
}
