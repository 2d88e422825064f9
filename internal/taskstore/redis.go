package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartats/ats-backend/internal/domain"
)

const taskKeyPrefix = "task:resume:"

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Retention time.Duration
}

// RedisStore keeps task state under task:resume:<id> with the retention
// window as the key TTL.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, retention: cfg.Retention}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Put(ctx context.Context, task domain.ParseTask) error {
	task.UpdatedAt = time.Now().UTC()
	encoded, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task state: %w", err)
	}
	if err := s.client.Set(ctx, taskKeyPrefix+task.TaskID, encoded, s.retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (domain.ParseTask, error) {
	raw, err := s.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ParseTask{}, ErrNotFound
		}
		return domain.ParseTask{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var task domain.ParseTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return domain.ParseTask{}, fmt.Errorf("decode task state: %w", err)
	}
	return task, nil
}
