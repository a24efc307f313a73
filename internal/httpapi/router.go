// Package httpapi is the back-office HTTP surface over the core: auth,
// menu, cart and the kitchen orders board. Handlers stay thin; all
// behavior lives in the repositories and services.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ArtyomNalbandian/Dolcetto/internal/auth"
	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/repository"
	"github.com/ArtyomNalbandian/Dolcetto/internal/service"
)

type Deps struct {
	Auth      *auth.Service
	Menu      *repository.MenuRepository
	Cart      *repository.CartRepository
	Kitchen   *service.KitchenService
	JWTSecret string
	Log       zerolog.Logger
}

// New builds the HTTP handler.
func New(deps Deps) http.Handler {
	s := &server{deps: deps, log: deps.Log.With().Str("component", "httpapi").Logger()}

	r := chi.NewRouter()
	r.Use(requestLogger(s.log))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(deps.JWTSecret))

		r.Get("/menu", s.handleListMenu)

		r.Get("/cart", s.handleGetCart)
		r.Post("/cart/items", s.handleAddCartItem)
		r.Put("/cart/items/{dishID}", s.handleUpdateCartItem)
		r.Delete("/cart/items/{dishID}", s.handleRemoveCartItem)
		r.Delete("/cart", s.handleClearCart)
		r.Post("/cart/checkout", s.handleCheckout)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleKitchen, domain.RoleAdmin))
			r.Get("/orders", s.handleListOrders)
			r.Put("/orders/{orderID}/status", s.handleUpdateOrderStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleAdmin))
			r.Post("/menu", s.handleSaveDish)
			r.Put("/menu/{dishID}", s.handleSaveDish)
			r.Delete("/menu/{dishID}", s.handleDeleteDish)
		})
	})

	return otelhttp.NewHandler(r, "dolcetto-api")
}

type server struct {
	deps Deps
	log  zerolog.Logger
}
