package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/livequery"
)

// OrderRepository observes the order list and drives the status workflow.
type OrderRepository struct {
	store docstore.Store
	log   zerolog.Logger
}

func NewOrderRepository(store docstore.Store, log zerolog.Logger) *OrderRepository {
	return &OrderRepository{
		store: store,
		log:   log.With().Str("component", "order-repository").Logger(),
	}
}

// Orders observes every order. Malformed order documents are dropped from
// the snapshot, they do not fail the whole list.
func (r *OrderRepository) Orders(ctx context.Context) (*livequery.Stream[[]domain.Order], error) {
	q := docstore.Query{Collection: ordersCollection}
	return livequery.WatchCollection[domain.Order](ctx, r.store, q, r.log)
}

// ListOrders is the one-shot read used by the HTTP surface.
func (r *OrderRepository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	snaps, err := r.store.List(ctx, docstore.Query{Collection: ordersCollection})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]domain.Order, 0, len(snaps))
	for _, snap := range snaps {
		var o domain.Order
		if err := json.Unmarshal(snap.Data, &o); err != nil {
			r.log.Warn().Err(err).Str("document", snap.ID).Msg("skipping malformed order")
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// UpdateStatus moves an order to the next workflow state. The transition is
// validated against the freshly read status inside a transaction, so a
// concurrent move cannot produce a skipped step. Returns the status the
// order had before the write.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus) (domain.OrderStatus, error) {
	var from domain.OrderStatus
	err := r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var order domain.Order
		if err := tx.Get(ordersCollection, orderID, &order); err != nil {
			return err
		}
		from = order.Status
		if !order.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, target)
		}
		return tx.UpdateField(ordersCollection, orderID, "status", target)
	})
	if err != nil {
		return from, err
	}
	r.log.Info().
		Str("orderId", orderID).
		Str("from", from.String()).
		Str("to", target.String()).
		Msg("order status updated")
	return from, nil
}
