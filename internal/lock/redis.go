// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/logging"
)

// Redis is a Locker backed by a Redis lease. The local guard is always taken
// first, so a run already active in this process never touches Redis.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
	local  *Local
	ttl    time.Duration
	prefix string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg *config.LockConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	logging.Info().Str("addr", cfg.RedisAddr).Dur("ttl", ttl).Msg("Connected to Redis run lock")

	return &Redis{
		client: client,
		locker: redislock.New(client),
		local:  NewLocal(),
		ttl:    ttl,
		prefix: cfg.KeyPrefix,
	}, nil
}

// Close closes the Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Acquire implements Locker. The lease is refreshed every ttl/3 until the
// returned Release is called.
func (r *Redis) Acquire(ctx context.Context, job string) (Release, error) {
	releaseLocal, err := r.local.Acquire(ctx, job)
	if err != nil {
		return nil, err
	}

	key := r.prefix + job
	lease, err := r.locker.Obtain(ctx, key, r.ttl, nil)
	switch {
	case errors.Is(err, redislock.ErrNotObtained):
		releaseLocal()
		return nil, ErrJobRunning
	case err != nil:
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Redis lock unavailable, using in-process lock only")
		return releaseLocal, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.refresh(lease, key, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lease.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logging.Warn().Err(err).Str("key", key).Msg("Failed to release Redis lock")
			}
			releaseLocal()
		})
	}, nil
}

func (r *Redis) refresh(lease *redislock.Lock, key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := lease.Refresh(ctx, r.ttl, nil)
			cancel()
			if err != nil {
				logging.Warn().Err(err).Str("key", key).Msg("Failed to refresh Redis lock")
			}
		}
	}
}

// New returns the Locker for cfg: Redis when enabled, otherwise Local.
// The returned close function releases the Redis pool and is never nil.
func New(ctx context.Context, cfg *config.LockConfig) (Locker, func() error, error) {
	if !cfg.Enabled {
		return NewLocal(), func() error { return nil }, nil
	}
	r, err := NewRedis(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
