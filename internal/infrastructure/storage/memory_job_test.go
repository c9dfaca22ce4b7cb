package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

func TestMemoryJobStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()

	job := &entity.Job{ID: "j1", Status: entity.JobCreated, Metadata: map[string]string{"file": "a.xml"}, CreatedAt: time.Now()}
	require.NoError(t, store.Create(ctx, job))
	assert.ErrorIs(t, store.Create(ctx, job), apperror.ErrJobExists)

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "a.xml", got.Metadata["file"])

	// returned jobs are copies
	got.Metadata["file"] = "mutated"
	again, _ := store.Get(ctx, "j1")
	assert.Equal(t, "a.xml", again.Metadata["file"])

	got.Status = entity.JobProcessing
	require.NoError(t, store.Save(ctx, got))
	again, _ = store.Get(ctx, "j1")
	assert.Equal(t, entity.JobProcessing, again.Status)

	assert.ErrorIs(t, store.Save(ctx, &entity.Job{ID: "missing"}), apperror.ErrJobNotFound)

	require.NoError(t, store.Delete(ctx, "j1"))
	_, err = store.Get(ctx, "j1")
	assert.ErrorIs(t, err, apperror.ErrJobNotFound)
}

func TestMemoryJobStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()
	base := time.Now()

	for i, status := range []entity.JobStatus{entity.JobCompleted, entity.JobFailed, entity.JobCompleted} {
		require.NoError(t, store.Create(ctx, &entity.Job{
			ID:        string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := store.List(ctx, entity.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	done, err := store.List(ctx, entity.JobFilter{Status: entity.JobCompleted, Limit: 1})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "c", done[0].ID)
}

func TestMemoryJobStore_Expire(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()

	require.NoError(t, store.Create(ctx, &entity.Job{ID: "j", CreatedAt: time.Now()}))
	require.NoError(t, store.Expire(ctx, "j", 20*time.Millisecond))
	assert.ErrorIs(t, store.Expire(ctx, "other", time.Second), apperror.ErrJobNotFound)

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "j")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}
