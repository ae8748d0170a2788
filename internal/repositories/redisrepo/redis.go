package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"RepAuthBot/internal/config"
	"RepAuthBot/internal/repositories"

	"github.com/gomodule/redigo/redis"
)

// Repository is the Redis-backed key-value store.
type Repository struct {
	pool *redis.Pool
	log  *slog.Logger
}

func New(logger *slog.Logger, cfg config.RedisConfig) *Repository {
	pool := &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", cfg.Address,
				redis.DialPassword(cfg.Password),
				redis.DialDatabase(cfg.DB),
				redis.DialConnectTimeout(5*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	return &Repository{
		pool: pool,
		log:  logger.With(slog.String("component", "repositories.redis")),
	}
}

// Ping checks that the server is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redisrepo.Ping: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return fmt.Errorf("redisrepo.Ping: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	op := "redisrepo.Get"
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer conn.Close()

	value, err := redis.String(conn.Do("GET", key))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return "", repositories.ErrNotFound
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

// Put stores value with SETEX. Redis expiry has second granularity.
func (r *Repository) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	op := "redisrepo.Put"
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer conn.Close()

	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if _, err := conn.Do("SETEX", key, seconds, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	op := "redisrepo.Delete"
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Shutdown closes the connection pool.
func (r *Repository) Shutdown(_ context.Context) error {
	if err := r.pool.Close(); err != nil {
		return fmt.Errorf("redisrepo.Shutdown: %w", err)
	}
	return nil
}
