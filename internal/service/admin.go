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
	"github.com/ArtyomNalbandian/Dolcetto/internal/state"
)

// AdminService backs the catalog management screen.
type AdminService struct {
	menuRepo *repository.MenuRepository
	log      zerolog.Logger

	menuState *state.Value[resource.Resource[[]domain.Dish]]

	mu     sync.Mutex
	stream *livequery.Stream[[]domain.Dish]
	wg     sync.WaitGroup
}

func NewAdminService(menuRepo *repository.MenuRepository, log zerolog.Logger) *AdminService {
	return &AdminService{
		menuRepo:  menuRepo,
		log:       log.With().Str("component", "admin-service").Logger(),
		menuState: state.NewValue(resource.Loading[[]domain.Dish]()),
	}
}

// Start opens the menu subscription.
func (s *AdminService) Start(ctx context.Context) error {
	stream, err := s.menuRepo.Menu(ctx)
	if err != nil {
		return fmt.Errorf("open menu stream: %w", err)
	}
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	pump(&s.wg, stream, s.menuState)
	return nil
}

// MenuState is the admin catalog state store.
func (s *AdminService) MenuState() *state.Value[resource.Resource[[]domain.Dish]] {
	return s.menuState
}

// SaveDish creates the dish when it has no id yet, otherwise updates it.
// Returns the dish id. Failures land on the menu state; the list itself is
// re-read through the live subscription.
func (s *AdminService) SaveDish(ctx context.Context, dish domain.Dish) (string, error) {
	var (
		id  string
		err error
	)
	if dish.ID == "" {
		id, err = s.menuRepo.AddDish(ctx, dish)
	} else {
		id, err = dish.ID, s.menuRepo.UpdateDish(ctx, dish)
	}
	if err != nil {
		s.fail(err)
		return "", err
	}
	return id, nil
}

// DeleteDish removes a dish; failures land on the menu state.
func (s *AdminService) DeleteDish(ctx context.Context, dishID string) error {
	if err := s.menuRepo.DeleteDish(ctx, dishID); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

func (s *AdminService) fail(err error) {
	s.log.Error().Err(err).Msg("catalog mutation failed")
	s.menuState.Set(resource.Error[[]domain.Dish](err.Error()))
}

// Close tears down the menu subscription.
func (s *AdminService) Close() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
	s.wg.Wait()
}
