package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "canopy:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps objects as plain Redis strings without expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) redisKey(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return redisKeyPrefix + key, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, body string) error {
	rk, err := s.redisKey(key)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, rk, body, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	rk, err := s.redisKey(key)
	if err != nil {
		return "", false, err
	}

	val, err := s.client.Get(ctx, rk).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return val, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	rk, err := s.redisKey(key)
	if err != nil {
		return err
	}

	if err := s.client.Del(ctx, rk).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
