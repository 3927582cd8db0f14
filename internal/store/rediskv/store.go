// Package rediskv stores postsmith record blobs in Redis, so several
// instances behind one front end share history and schedule.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/works-s/postsmith/internal/store"
)

const (
	defaultTimeout = 5 * time.Second
	keyPrefix      = "postsmith:"
)

var _ store.BlobStore = (*Store)(nil)

// Store is a store.BlobStore on a Redis client.
type Store struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

// Open connects to the Redis server at redisURL and pings it.
func Open(ctx context.Context, redisURL string, logger *slog.Logger) (*Store, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required")
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = defaultTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = defaultTimeout
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if logger != nil {
		logger.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	}
	return New(client, logger), nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Get implements store.BlobStore.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, mapErr(fmt.Errorf("redis get %s: %w", key, err))
	}
	return v, true, nil
}

// Set implements store.BlobStore. Records never expire.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return mapErr(fmt.Errorf("redis set %s: %w", key, err))
	}
	return nil
}

// Delete implements store.BlobStore.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return mapErr(fmt.Errorf("redis del %s: %w", key, err))
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx).Err())
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func mapErr(err error) error {
	if errors.Is(err, goredis.ErrClosed) {
		return fmt.Errorf("%w: %w", store.ErrClosed, err)
	}
	return err
}
