package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per job under "job:<id>".
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl keeps records until they are removed externally.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context) (Job, error) {
	now := time.Now().UTC()
	j := Job{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(j.ID), map[string]interface{}{
		"status":     string(j.Status),
		"file_url":   "",
		"stage":      "",
		"error":      "",
		"created_at": now.Format(time.RFC3339Nano),
		"updated_at": now.Format(time.RFC3339Nano),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, jobKey(j.ID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	return j, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Job, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return Job{}, ErrNotFound
	}

	j := Job{
		ID:      id,
		Status:  Status(fields["status"]),
		FileURL: fields["file_url"],
		Stage:   Stage(fields["stage"]),
		Error:   fields["error"],
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return j, nil
}

func (s *RedisStore) SetStatus(ctx context.Context, id string, status Status) error {
	return s.markStatus(ctx, id, map[string]interface{}{"status": string(status)})
}

func (s *RedisStore) SetOutput(ctx context.Context, id string, ref string) error {
	return s.markStatus(ctx, id, map[string]interface{}{"file_url": ref})
}

func (s *RedisStore) SetFailure(ctx context.Context, id string, stage Stage, reason string) error {
	return s.markStatus(ctx, id, map[string]interface{}{
		"status":   string(StatusFailed),
		"stage":    string(stage),
		"error":    truncateReason(reason),
		"file_url": "",
	})
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) markStatus(ctx context.Context, id string, fields map[string]interface{}) error {
	key := jobKey(id)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check job %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return nil
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}
