package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/livequery"
)

const (
	usersCollection  = "users"
	ordersCollection = "orders"
	cartField        = "cart"
)

// CartRepository mutates the cart embedded in a user document. Item-level
// mutations run as read-modify-write transactions so concurrent editors
// (two devices, add-then-update races) cannot silently overwrite each
// other; the store rejects a commit based on a stale read and re-runs the
// body.
type CartRepository struct {
	store docstore.Store
	log   zerolog.Logger
}

func NewCartRepository(store docstore.Store, log zerolog.Logger) *CartRepository {
	return &CartRepository{
		store: store,
		log:   log.With().Str("component", "cart-repository").Logger(),
	}
}

// Watch observes the user's cart. The cart lives inside the user document,
// so this is the single-document variant: a malformed user document is a
// hard error for that emission, there is no record to skip.
func (r *CartRepository) Watch(ctx context.Context, userID string) (*livequery.Stream[domain.Cart], error) {
	q := docstore.Query{Collection: usersCollection, DocumentID: userID}
	userStream, err := livequery.WatchDocument[domain.UserData](ctx, r.store, q, r.log)
	if err != nil {
		return nil, err
	}
	return livequery.Transform(userStream, func(u domain.UserData) domain.Cart {
		if u.Cart == nil {
			return domain.Cart{}
		}
		return u.Cart
	}), nil
}

// GetCart reads the current cart once.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	var user domain.UserData
	if err := r.store.Get(ctx, usersCollection, userID, &user); err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if user.Cart == nil {
		return domain.Cart{}, nil
	}
	return user.Cart, nil
}

// AddItem merges an item into the cart. When the dish is already present
// the quantities are summed; the denormalized snapshot fields keep the
// values captured by the first add.
func (r *CartRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	err := r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var user domain.UserData
		if err := tx.Get(usersCollection, userID, &user); err != nil {
			return err
		}
		cart := user.Cart
		if i := cart.IndexOf(item.DishID); i >= 0 {
			cart[i].Quantity += item.Quantity
		} else {
			cart = append(cart, item)
		}
		return tx.UpdateField(usersCollection, userID, cartField, cart)
	})
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

// UpdateItem replaces the cart entry with the same dish id. A dish id not
// present in the cart is a no-op.
func (r *CartRepository) UpdateItem(ctx context.Context, userID string, item domain.CartItem) error {
	err := r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var user domain.UserData
		if err := tx.Get(usersCollection, userID, &user); err != nil {
			return err
		}
		i := user.Cart.IndexOf(item.DishID)
		if i < 0 {
			return nil
		}
		cart := user.Cart
		cart[i] = item
		return tx.UpdateField(usersCollection, userID, cartField, cart)
	})
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return nil
}

// RemoveItem deletes the entry with the given dish id; absent entries are a
// no-op.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, dishID string) error {
	err := r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var user domain.UserData
		if err := tx.Get(usersCollection, userID, &user); err != nil {
			return err
		}
		i := user.Cart.IndexOf(dishID)
		if i < 0 {
			return nil
		}
		cart := append(user.Cart[:i], user.Cart[i+1:]...)
		return tx.UpdateField(usersCollection, userID, cartField, cart)
	})
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

// Clear overwrites the cart with an empty set. Deliberately not
// transactional: it is a destructive user-initiated terminal action and
// last-writer-wins is acceptable.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.store.UpdateField(ctx, usersCollection, userID, cartField, domain.Cart{}); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Checkout snapshots the cart into a new pending order and clears the cart
// in the same transaction, so a concurrent cart edit either lands before
// the snapshot or survives into the next cart. Returns the new order id.
func (r *CartRepository) Checkout(ctx context.Context, userID, orderName string) (string, error) {
	orderID := uuid.New().String()
	err := r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var user domain.UserData
		if err := tx.Get(usersCollection, userID, &user); err != nil {
			return err
		}
		if len(user.Cart) == 0 {
			return domain.ErrEmptyCart
		}

		dishes := make([]domain.Dish, 0, len(user.Cart))
		for _, item := range user.Cart {
			dishes = append(dishes, domain.Dish{
				ID:       item.DishID,
				Name:     item.Name,
				Price:    item.Price,
				ImageURL: item.ImageURL,
			})
		}
		order := domain.Order{
			ID:         orderID,
			OrderName:  orderName,
			Dishes:     dishes,
			TotalPrice: user.Cart.Total(),
			Status:     domain.OrderStatusPending,
		}
		if err := tx.Set(ordersCollection, orderID, order); err != nil {
			return err
		}
		return tx.UpdateField(usersCollection, userID, cartField, domain.Cart{})
	})
	if err != nil {
		return "", fmt.Errorf("checkout: %w", err)
	}
	r.log.Info().Str("userId", userID).Str("orderId", orderID).Msg("checkout completed")
	return orderID, nil
}
