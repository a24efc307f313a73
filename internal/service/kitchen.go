package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/events"
	"github.com/ArtyomNalbandian/Dolcetto/internal/livequery"
	"github.com/ArtyomNalbandian/Dolcetto/internal/repository"
	"github.com/ArtyomNalbandian/Dolcetto/internal/resource"
	"github.com/ArtyomNalbandian/Dolcetto/internal/state"
)

// KitchenService backs the kitchen orders board: the live order list plus
// the status workflow actions.
type KitchenService struct {
	orders    *repository.OrderRepository
	publisher events.Publisher
	log       zerolog.Logger

	ordersState *state.Value[resource.Resource[[]domain.Order]]

	mu     sync.Mutex
	stream *livequery.Stream[[]domain.Order]
	wg     sync.WaitGroup
}

func NewKitchenService(orders *repository.OrderRepository, publisher events.Publisher, log zerolog.Logger) *KitchenService {
	return &KitchenService{
		orders:      orders,
		publisher:   publisher,
		log:         log.With().Str("component", "kitchen-service").Logger(),
		ordersState: state.NewValue(resource.Loading[[]domain.Order]()),
	}
}

// Start opens the order list subscription.
func (s *KitchenService) Start(ctx context.Context) error {
	stream, err := s.orders.Orders(ctx)
	if err != nil {
		return fmt.Errorf("open orders stream: %w", err)
	}
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	pump(&s.wg, stream, s.ordersState)
	return nil
}

// OrdersState is the orders board state store.
func (s *KitchenService) OrdersState() *state.Value[resource.Resource[[]domain.Order]] {
	return s.ordersState
}

// UpdateOrderStatus moves an order along the workflow. A failed write lands
// on the list state with the last known list retained; the board is
// re-read from the live subscription, there is no optimistic local change
// to roll back.
func (s *KitchenService) UpdateOrderStatus(ctx context.Context, orderID string, target domain.OrderStatus) error {
	from, err := s.orders.UpdateStatus(ctx, orderID, target)
	if err != nil {
		s.log.Error().Err(err).Str("orderId", orderID).Msg("status update failed")
		cur := s.ordersState.Get()
		if last, ok := cur.Value(); ok {
			s.ordersState.Set(resource.ErrorWith(err.Error(), last))
		} else {
			s.ordersState.Set(resource.Error[[]domain.Order](err.Error()))
		}
		return err
	}
	if err := s.publisher.OrderStatusChanged(ctx, orderID, from, target); err != nil {
		// best effort: the write itself already succeeded
		s.log.Warn().Err(err).Str("orderId", orderID).Msg("status event publish failed")
	}
	return nil
}

// Close tears down the order subscription.
func (s *KitchenService) Close() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
	s.wg.Wait()
}
