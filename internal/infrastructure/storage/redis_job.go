package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
)

const (
	redisJobPrefix   = "catalog:job:"
	redisJobIndexKey = "catalog:jobs"
)

// RedisConfig Redis ulanish sozlamalari
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type redisJobStore struct {
	client *redis.Client
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("REDIS_ADDR sozlanmagan")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisga ulanib bo'lmadi: %w", err)
	}
	return client, nil
}

// NewRedisJobStore Redis asosidagi job store, shared across instances
func NewRedisJobStore(client *redis.Client) repository.JobStore {
	return &redisJobStore{client: client}
}

func jobKey(id string) string {
	return redisJobPrefix + id
}

// Create writes the job and its index entry in one MULTI. SETNX rejects a
// duplicate ID and ZADD NX leaves the existing entry's score alone.
func (r *redisJobStore) Create(ctx context.Context, job *entity.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	created := pipe.SetNX(ctx, jobKey(job.ID), data, 0)
	pipe.ZAddNX(ctx, redisJobIndexKey, redis.Z{
		Score:  float64(job.CreatedAt.UnixNano()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("job saqlanmadi: %w", err)
	}
	if !created.Val() {
		return apperror.ErrJobExists
	}
	return nil
}

// Get jobni olish
func (r *redisJobStore) Get(ctx context.Context, id string) (*entity.Job, error) {
	data, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job entity.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("job o'qilmadi: %w", err)
	}
	return &job, nil
}

// Save keeps any TTL already set on the key.
func (r *redisJobStore) Save(ctx context.Context, job *entity.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := r.client.SetArgs(ctx, jobKey(job.ID), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Result()
	if errors.Is(err, redis.Nil) || (err == nil && ok != "OK") {
		return apperror.ErrJobNotFound
	}
	return err
}

// List newest first; index entries whose job expired are pruned on the way.
func (r *redisJobStore) List(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error) {
	ids, err := r.client.ZRevRange(ctx, redisJobIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*entity.Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*entity.Job, 0, len(values))
	var stale []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var job entity.Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, &job)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	if len(stale) > 0 {
		_ = r.client.ZRem(ctx, redisJobIndexKey, stale...).Err()
	}
	return out, nil
}

// Delete jobni o'chirish
func (r *redisJobStore) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, jobKey(id))
	pipe.ZRem(ctx, redisJobIndexKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

// Expire sets the key TTL; the index entry is pruned lazily by List.
func (r *redisJobStore) Expire(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, jobKey(id), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrJobNotFound
	}
	return nil
}
