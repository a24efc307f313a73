package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ArtyomNalbandian/Dolcetto/internal/cache"
	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/livequery"
)

const dishesCollection = "dishes"

// MenuRepository owns the dish catalog: live observation for the screens,
// a cached one-shot list for the read surface, and admin mutations.
type MenuRepository struct {
	store docstore.Store
	cache cache.MenuCache // optional
	sfg   singleflight.Group
	log   zerolog.Logger
}

func NewMenuRepository(store docstore.Store, menuCache cache.MenuCache, log zerolog.Logger) *MenuRepository {
	return &MenuRepository{
		store: store,
		cache: menuCache,
		log:   log.With().Str("component", "menu-repository").Logger(),
	}
}

func menuQuery() docstore.Query {
	return docstore.Query{
		Collection: dishesCollection,
		OrderBy:    "createdAt",
		Descending: true,
	}
}

// Menu observes the whole catalog, newest dish first.
func (r *MenuRepository) Menu(ctx context.Context) (*livequery.Stream[[]domain.Dish], error) {
	return livequery.WatchCollection[domain.Dish](ctx, r.store, menuQuery(), r.log)
}

// DishByID observes a single dish document.
func (r *MenuRepository) DishByID(ctx context.Context, dishID string) (*livequery.Stream[domain.Dish], error) {
	q := docstore.Query{Collection: dishesCollection, DocumentID: dishID}
	return livequery.WatchDocument[domain.Dish](ctx, r.store, q, r.log)
}

// ListDishes is the one-shot read used by the HTTP surface: cache first,
// store on miss, singleflight so concurrent misses trigger one store read.
func (r *MenuRepository) ListDishes(ctx context.Context) ([]domain.Dish, error) {
	v, err, _ := r.sfg.Do("menu", func() (any, error) {
		if r.cache != nil {
			dishes, err := r.cache.Get(ctx)
			if err == nil {
				return dishes, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				r.log.Warn().Err(err).Msg("menu cache get failed")
			}
		}

		snaps, err := r.store.List(ctx, menuQuery())
		if err != nil {
			return nil, fmt.Errorf("list dishes: %w", err)
		}
		dishes := make([]domain.Dish, 0, len(snaps))
		for _, snap := range snaps {
			var d domain.Dish
			if err := json.Unmarshal(snap.Data, &d); err != nil {
				r.log.Warn().Err(err).Str("document", snap.ID).Msg("skipping malformed dish")
				continue
			}
			dishes = append(dishes, d)
		}

		if r.cache != nil {
			go func() {
				if err := r.cache.Set(context.Background(), dishes); err != nil {
					r.log.Warn().Err(err).Msg("menu cache set failed")
				}
			}()
		}
		return dishes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Dish), nil
}

// AddDish persists a new dish, assigning its id and creation timestamp.
// Returns the assigned id.
func (r *MenuRepository) AddDish(ctx context.Context, dish domain.Dish) (string, error) {
	dish.ID = uuid.New().String()
	dish.CreatedAt = time.Now().UTC()
	if err := r.store.Set(ctx, dishesCollection, dish.ID, dish); err != nil {
		return "", fmt.Errorf("add dish: %w", err)
	}
	r.invalidate()
	return dish.ID, nil
}

// UpdateDish replaces an existing dish document.
func (r *MenuRepository) UpdateDish(ctx context.Context, dish domain.Dish) error {
	if dish.ID == "" {
		return fmt.Errorf("update dish: empty id")
	}
	if err := r.store.Set(ctx, dishesCollection, dish.ID, dish); err != nil {
		return fmt.Errorf("update dish: %w", err)
	}
	r.invalidate()
	return nil
}

// DeleteDish removes a dish from the catalog.
func (r *MenuRepository) DeleteDish(ctx context.Context, dishID string) error {
	if err := r.store.Delete(ctx, dishesCollection, dishID); err != nil {
		return fmt.Errorf("delete dish: %w", err)
	}
	r.invalidate()
	return nil
}

func (r *MenuRepository) invalidate() {
	if r.cache == nil {
		return
	}
	go func() {
		if err := r.cache.Invalidate(context.Background()); err != nil {
			r.log.Warn().Err(err).Msg("menu cache invalidate failed")
		}
	}()
}
