package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/repository"
	"github.com/ArtyomNalbandian/Dolcetto/internal/resource"
	"github.com/ArtyomNalbandian/Dolcetto/internal/session"
	"github.com/ArtyomNalbandian/Dolcetto/internal/state"
)

func newCustomer(t *testing.T, store *docstore.MemoryStore, signedIn bool) (*CustomerService, *session.Session) {
	t.Helper()
	sess := session.New()
	user := domain.UserData{UserID: "u1", Email: "a@b.c", Role: domain.RoleUser, Cart: domain.Cart{}}
	if signedIn {
		require.NoError(t, store.Set(context.Background(), "users", user.UserID, user))
		sess.Set(user, "tok")
	}
	menuRepo := repository.NewMenuRepository(store, nil, zerolog.Nop())
	cartRepo := repository.NewCartRepository(store, zerolog.Nop())
	svc := NewCustomerService(menuRepo, cartRepo, sess, zerolog.Nop())
	t.Cleanup(svc.Close)
	return svc, sess
}

func awaitCartState(t *testing.T, v *state.Value[resource.Resource[domain.Cart]], pred func(resource.Resource[domain.Cart]) bool) resource.Resource[domain.Cart] {
	t.Helper()
	var last resource.Resource[domain.Cart]
	require.Eventually(t, func() bool {
		last = v.Get()
		return pred(last)
	}, 2*time.Second, 10*time.Millisecond)
	return last
}

func TestCustomerStartRequiresSession(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc, _ := newCustomer(t, store, false)
	err := svc.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestCustomerMenuAndCartStates(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc, _ := newCustomer(t, store, true)

	menuRepo := repository.NewMenuRepository(store, nil, zerolog.Nop())
	_, err := menuRepo.AddDish(ctx, domain.Dish{Name: "Tiramisu", Price: 9.5})
	require.NoError(t, err)

	require.NoError(t, svc.Start(ctx))

	require.Eventually(t, func() bool {
		r := svc.MenuState().Get()
		dishes, ok := r.Value()
		return r.IsSuccess() && ok && len(dishes) == 1
	}, 2*time.Second, 10*time.Millisecond)

	awaitCartState(t, svc.CartState(), func(r resource.Resource[domain.Cart]) bool {
		c, ok := r.Value()
		return r.IsSuccess() && ok && len(c) == 0
	})
}

func TestCustomerAddToCartFlowsIntoCartState(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc, _ := newCustomer(t, store, true)
	require.NoError(t, svc.Start(ctx))

	dish := domain.Dish{ID: "d1", Name: "Tiramisu", Price: 9.5, ImageURL: "img"}
	require.NoError(t, svc.AddToCart(ctx, dish))
	require.NoError(t, svc.AddToCart(ctx, dish))

	r := awaitCartState(t, svc.CartState(), func(r resource.Resource[domain.Cart]) bool {
		c, ok := r.Value()
		return r.IsSuccess() && ok && len(c) == 1 && c[0].Quantity == 2
	})
	cart, _ := r.Value()
	assert.Equal(t, "Tiramisu", cart[0].Name, "cart item carries the dish snapshot")
	assert.InDelta(t, 19.0, cart.Total(), 1e-9)
}

func TestCustomerCheckoutClearsCart(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc, _ := newCustomer(t, store, true)
	require.NoError(t, svc.Start(ctx))

	require.NoError(t, svc.AddToCart(ctx, domain.Dish{ID: "d1", Name: "Tiramisu", Price: 9.5}))

	orderID, err := svc.Checkout(ctx, "Table 5")
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	awaitCartState(t, svc.CartState(), func(r resource.Resource[domain.Cart]) bool {
		c, ok := r.Value()
		return r.IsSuccess() && ok && len(c) == 0
	})

	var order domain.Order
	require.NoError(t, store.Get(ctx, "orders", orderID, &order))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func TestCustomerCheckoutEmptyCart(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc, _ := newCustomer(t, store, true)
	require.NoError(t, svc.Start(ctx))

	_, err := svc.Checkout(ctx, "Table 5")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCustomerActionsRequireSession(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc, sess := newCustomer(t, store, true)
	require.NoError(t, svc.Start(ctx))
	sess.Clear()

	assert.ErrorIs(t, svc.AddToCart(ctx, domain.Dish{ID: "d1"}), domain.ErrNotAuthenticated)
	assert.ErrorIs(t, svc.ClearCart(ctx), domain.ErrNotAuthenticated)
	_, err := svc.Checkout(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestCustomerCloseRemovesAllListeners(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc, _ := newCustomer(t, store, true)
	require.NoError(t, svc.Start(ctx))
	require.Equal(t, 2, store.Listeners(), "menu and cart subscriptions")

	dishStream, err := svc.DishDetail(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, 3, store.Listeners())

	dishStream.Close()
	assert.Equal(t, 2, store.Listeners())

	svc.Close()
	assert.Equal(t, 0, store.Listeners(), "close must remove every listener the service opened")
}
