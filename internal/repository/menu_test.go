package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtyomNalbandian/Dolcetto/internal/cache"
	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/resource"
)

type mockCache struct {
	m      sync.RWMutex
	dishes []domain.Dish
	gets   int
	sets   int
	dels   int
}

func (m *mockCache) Get(context.Context) ([]domain.Dish, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.dishes == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.dishes, nil
}

func (m *mockCache) Set(_ context.Context, dishes []domain.Dish) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.sets++
	m.dishes = dishes
	return nil
}

func (m *mockCache) Invalidate(context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.dels++
	m.dishes = nil
	return nil
}

func (m *mockCache) counts() (gets, sets, dels int) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.gets, m.sets, m.dels
}

func TestMenuAddDishAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewMenuRepository(store, nil, zerolog.Nop())

	id, err := repo.AddDish(ctx, domain.Dish{Name: "Tiramisu", Price: 9.5, Category: "dessert"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var dish domain.Dish
	require.NoError(t, store.Get(ctx, "dishes", id, &dish))
	assert.Equal(t, id, dish.ID)
	assert.Equal(t, "Tiramisu", dish.Name)
	assert.False(t, dish.CreatedAt.IsZero(), "creation timestamp is assigned at first write")
}

func TestMenuUpdateDishRequiresID(t *testing.T) {
	repo := NewMenuRepository(docstore.NewMemoryStore(), nil, zerolog.Nop())
	err := repo.UpdateDish(context.Background(), domain.Dish{Name: "no id"})
	assert.Error(t, err)
}

func TestMenuDeleteDish(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewMenuRepository(store, nil, zerolog.Nop())

	id, err := repo.AddDish(ctx, domain.Dish{Name: "Espresso", Price: 2})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteDish(ctx, id))
	assert.ErrorIs(t, repo.DeleteDish(ctx, id), docstore.ErrNotFound)
}

func TestMenuListDishesReadThrough(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	mc := &mockCache{}
	repo := NewMenuRepository(store, mc, zerolog.Nop())

	_, err := repo.AddDish(ctx, domain.Dish{Name: "Tiramisu", Price: 9.5})
	require.NoError(t, err)

	dishes, err := repo.ListDishes(ctx)
	require.NoError(t, err)
	require.Len(t, dishes, 1)

	// The miss populates the cache asynchronously.
	require.Eventually(t, func() bool {
		_, sets, _ := mc.counts()
		return sets == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A second list is served from the cache.
	dishes, err = repo.ListDishes(ctx)
	require.NoError(t, err)
	require.Len(t, dishes, 1)
	gets, sets, _ := mc.counts()
	assert.GreaterOrEqual(t, gets, 2)
	assert.Equal(t, 1, sets, "cache hit must not re-populate")
}

func TestMenuMutationsInvalidateCache(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	mc := &mockCache{dishes: []domain.Dish{{ID: "stale"}}}
	repo := NewMenuRepository(store, mc, zerolog.Nop())

	id, err := repo.AddDish(ctx, domain.Dish{Name: "New", Price: 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, _, dels := mc.counts()
		return dels >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, repo.DeleteDish(ctx, id))
	require.Eventually(t, func() bool {
		_, _, dels := mc.counts()
		return dels >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMenuStreamNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewMenuRepository(store, nil, zerolog.Nop())

	_, err := repo.AddDish(ctx, domain.Dish{Name: "first", Price: 1})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct createdAt
	_, err = repo.AddDish(ctx, domain.Dish{Name: "second", Price: 2})
	require.NoError(t, err)

	st, err := repo.Menu(ctx)
	require.NoError(t, err)
	defer st.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-st.Events():
			require.True(t, ok)
			if dishes, has := r.Value(); r.IsSuccess() && has && len(dishes) == 2 {
				assert.Equal(t, "second", dishes[0].Name, "newest dish first")
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for menu")
		}
	}
}

func TestMenuDishByIDStream(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewMenuRepository(store, nil, zerolog.Nop())

	id, err := repo.AddDish(ctx, domain.Dish{Name: "Tiramisu", Price: 9.5})
	require.NoError(t, err)

	st, err := repo.DishByID(ctx, id)
	require.NoError(t, err)
	defer st.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-st.Events():
			require.True(t, ok)
			if r.IsSuccess() {
				dish, _ := r.Value()
				assert.Equal(t, "Tiramisu", dish.Name)
				return
			}
			require.NotEqual(t, resource.StatusError, r.Status())
		case <-deadline:
			t.Fatal("timed out waiting for dish")
		}
	}
}
