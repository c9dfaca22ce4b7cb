package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisJobStore_CRUD(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := NewRedisJobStore(client)

	job := &entity.Job{ID: "j1", Status: entity.JobCreated, Metadata: map[string]string{"file": "a.xml"}, CreatedAt: time.Now()}
	require.NoError(t, store.Create(ctx, job))
	assert.ErrorIs(t, store.Create(ctx, job), apperror.ErrJobExists)

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "a.xml", got.Metadata["file"])

	got.Status = entity.JobProcessing
	require.NoError(t, store.Save(ctx, got))
	again, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobProcessing, again.Status)

	assert.ErrorIs(t, store.Save(ctx, &entity.Job{ID: "missing"}), apperror.ErrJobNotFound)

	require.NoError(t, store.Delete(ctx, "j1"))
	_, err = store.Get(ctx, "j1")
	assert.ErrorIs(t, err, apperror.ErrJobNotFound)

	n, err := client.ZCard(ctx, redisJobIndexKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisJobStore_DuplicateKeepsIndexScore(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := NewRedisJobStore(client)

	first := time.Now()
	require.NoError(t, store.Create(ctx, &entity.Job{ID: "j", CreatedAt: first}))
	err := store.Create(ctx, &entity.Job{ID: "j", CreatedAt: first.Add(time.Hour)})
	assert.ErrorIs(t, err, apperror.ErrJobExists)

	score, err := client.ZScore(ctx, redisJobIndexKey, "j").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(first.UnixNano()), score)
}

func TestRedisJobStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := NewRedisJobStore(client)
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

func TestRedisJobStore_ExpirePrunesIndex(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisJobStore(client)

	require.NoError(t, store.Create(ctx, &entity.Job{ID: "old", CreatedAt: time.Now()}))
	require.NoError(t, store.Create(ctx, &entity.Job{ID: "new", CreatedAt: time.Now().Add(time.Second)}))
	require.NoError(t, store.Expire(ctx, "old", time.Minute))
	assert.ErrorIs(t, store.Expire(ctx, "other", time.Minute), apperror.ErrJobNotFound)

	// Save keeps the TTL
	job, err := store.Get(ctx, "old")
	require.NoError(t, err)
	job.Status = entity.JobCompleted
	require.NoError(t, store.Save(ctx, job))
	assert.Equal(t, time.Minute, mr.TTL(jobKey("old")))

	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, apperror.ErrJobNotFound)

	jobs, err := store.List(ctx, entity.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "new", jobs[0].ID)

	ids, err := client.ZRange(ctx, redisJobIndexKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids)
}

func TestNewRedisClient_RequiresAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{})
	assert.Error(t, err)
}
