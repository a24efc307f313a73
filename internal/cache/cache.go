package cache

import (
	"context"
	"errors"

	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
)

// MenuCache fronts the dish catalog for one-shot reads.
type MenuCache interface {
	Get(ctx context.Context) ([]domain.Dish, error)
	Set(ctx context.Context, dishes []domain.Dish) error
	Invalidate(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")
