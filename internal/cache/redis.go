package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
)

const menuKey = "menu:dishes"

// RedisCache caches the full dish list. All Redis calls go through a circuit
// breaker: when Redis misbehaves the breaker opens and callers fall back to
// the store as on a plain miss. A cache miss does not count as a failure.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "menu-cache",
		Timeout: 30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
	})
	return &RedisCache{
		client:  client,
		breaker: breaker,
		baseTTL: 15 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context) ([]domain.Dish, error) {
	data, err := r.breaker.Execute(func() ([]byte, error) {
		data, err := r.client.Get(ctx, menuKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed: %w", err)
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var dishes []domain.Dish
	if err := json.Unmarshal(data, &dishes); err != nil {
		return nil, fmt.Errorf("unmarshal menu failed: %w", err)
	}
	return dishes, nil
}

func (r *RedisCache) Set(ctx context.Context, dishes []domain.Dish) error {
	data, err := json.Marshal(dishes)
	if err != nil {
		return fmt.Errorf("marshal menu failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	_, err = r.breaker.Execute(func() ([]byte, error) {
		if err := r.client.Set(ctx, menuKey, data, ttl).Err(); err != nil {
			return nil, fmt.Errorf("redis set failed: %w", err)
		}
		return nil, nil
	})
	return err
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	_, err := r.breaker.Execute(func() ([]byte, error) {
		if err := r.client.Del(ctx, menuKey).Err(); err != nil {
			return nil, fmt.Errorf("redis delete failed: %w", err)
		}
		return nil, nil
	})
	return err
}
