// Package service holds the per-screen view-state stores. Each service owns
// the live query streams backing one screen, folds them into state values
// the UI reads, and exposes the user actions of that screen. Closing a
// service tears down every listener it opened; that is an exit-path
// guarantee, not best effort.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/livequery"
	"github.com/ArtyomNalbandian/Dolcetto/internal/repository"
	"github.com/ArtyomNalbandian/Dolcetto/internal/resource"
	"github.com/ArtyomNalbandian/Dolcetto/internal/session"
	"github.com/ArtyomNalbandian/Dolcetto/internal/state"
)

type closer interface{ Close() }

// CustomerService backs the menu and cart screens of the customer mode.
type CustomerService struct {
	menuRepo *repository.MenuRepository
	cartRepo *repository.CartRepository
	session  *session.Session
	log      zerolog.Logger

	menuState *state.Value[resource.Resource[[]domain.Dish]]
	cartState *state.Value[resource.Resource[domain.Cart]]

	mu      sync.Mutex
	streams []closer
	wg      sync.WaitGroup
}

func NewCustomerService(menuRepo *repository.MenuRepository, cartRepo *repository.CartRepository, sess *session.Session, log zerolog.Logger) *CustomerService {
	return &CustomerService{
		menuRepo:  menuRepo,
		cartRepo:  cartRepo,
		session:   sess,
		log:       log.With().Str("component", "customer-service").Logger(),
		menuState: state.NewValue(resource.Loading[[]domain.Dish]()),
		cartState: state.NewValue(resource.Loading[domain.Cart]()),
	}
}

// Start opens the menu and cart subscriptions for the authenticated user.
func (s *CustomerService) Start(ctx context.Context) error {
	user, ok := s.session.Current()
	if !ok {
		return domain.ErrNotAuthenticated
	}

	menu, err := s.menuRepo.Menu(ctx)
	if err != nil {
		return fmt.Errorf("open menu stream: %w", err)
	}
	cart, err := s.cartRepo.Watch(ctx, user.UserID)
	if err != nil {
		menu.Close()
		return fmt.Errorf("open cart stream: %w", err)
	}

	s.track(menu)
	s.track(cart)
	pump(&s.wg, menu, s.menuState)
	pump(&s.wg, cart, s.cartState)
	return nil
}

// MenuState is the menu screen's state store.
func (s *CustomerService) MenuState() *state.Value[resource.Resource[[]domain.Dish]] {
	return s.menuState
}

// CartState is the cart screen's state store.
func (s *CustomerService) CartState() *state.Value[resource.Resource[domain.Cart]] {
	return s.cartState
}

// DishDetail observes one dish for the detail screen. The caller owns the
// returned stream's lifetime.
func (s *CustomerService) DishDetail(ctx context.Context, dishID string) (*livequery.Stream[domain.Dish], error) {
	return s.menuRepo.DishByID(ctx, dishID)
}

// AddToCart builds the denormalized cart item for a dish and merges it into
// the cart.
func (s *CustomerService) AddToCart(ctx context.Context, dish domain.Dish) error {
	user, ok := s.session.Current()
	if !ok {
		return domain.ErrNotAuthenticated
	}
	item := domain.CartItem{
		DishID:   dish.ID,
		Quantity: 1,
		Price:    dish.Price,
		Name:     dish.Name,
		ImageURL: dish.ImageURL,
	}
	return s.cartRepo.AddItem(ctx, user.UserID, item)
}

func (s *CustomerService) UpdateCartItem(ctx context.Context, item domain.CartItem) error {
	user, ok := s.session.Current()
	if !ok {
		return domain.ErrNotAuthenticated
	}
	return s.cartRepo.UpdateItem(ctx, user.UserID, item)
}

func (s *CustomerService) RemoveCartItem(ctx context.Context, dishID string) error {
	user, ok := s.session.Current()
	if !ok {
		return domain.ErrNotAuthenticated
	}
	return s.cartRepo.RemoveItem(ctx, user.UserID, dishID)
}

func (s *CustomerService) ClearCart(ctx context.Context) error {
	user, ok := s.session.Current()
	if !ok {
		return domain.ErrNotAuthenticated
	}
	return s.cartRepo.Clear(ctx, user.UserID)
}

// Checkout turns the current cart into a pending order. Returns the order
// id.
func (s *CustomerService) Checkout(ctx context.Context, orderName string) (string, error) {
	user, ok := s.session.Current()
	if !ok {
		return "", domain.ErrNotAuthenticated
	}
	return s.cartRepo.Checkout(ctx, user.UserID, orderName)
}

// Close tears down every stream this service opened and waits for the
// pumps to drain.
func (s *CustomerService) Close() {
	s.mu.Lock()
	streams := s.streams
	s.streams = nil
	s.mu.Unlock()
	for _, c := range streams {
		c.Close()
	}
	s.wg.Wait()
}

func (s *CustomerService) track(c closer) {
	s.mu.Lock()
	s.streams = append(s.streams, c)
	s.mu.Unlock()
}

// pump copies every resource value of a stream into a state store.
func pump[T any](wg *sync.WaitGroup, stream *livequery.Stream[T], dst *state.Value[resource.Resource[T]]) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range stream.Events() {
			dst.Set(r)
		}
	}()
}
