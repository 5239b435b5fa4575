package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/comment-radar/services/radar/internal/comment"
)

// RedisStore keeps the list as one JSON array under key.
type RedisStore struct {
	client  *redis.Client
	key     string
	retries int
}

func newRedisStore(url, key string, retries int) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	return NewRedisStore(redis.NewClient(opts), key, retries), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string, retries int) *RedisStore {
	if key == "" {
		key = "logs"
	}
	if retries <= 0 {
		retries = 5
	}
	return &RedisStore{client: client, key: key, retries: retries}
}

// Ping checks connectivity; used as the readiness probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context) ([]comment.Record, error) {
	return s.read(ctx, s.client)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, c getter) ([]comment.Record, error) {
	val, err := c.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []comment.Record
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, fn MutateFunc) (bool, error) {
	var changed bool
	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		next, ok := fn(current)
		changed = ok
		if !ok {
			return nil
		}
		b, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, b, 0)
			return nil
		})
		return err
	}

	for i := 0; i < s.retries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return changed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, err
	}
	return false, ErrConflict
}
