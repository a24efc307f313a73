package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  domain.UserData `json:"user"`
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	user, token, err := s.deps.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	user, token, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *server) handleListMenu(w http.ResponseWriter, r *http.Request) {
	dishes, err := s.deps.Menu.ListDishes(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dishes)
}

func (s *server) handleSaveDish(w http.ResponseWriter, r *http.Request) {
	var dish domain.Dish
	if err := json.NewDecoder(r.Body).Decode(&dish); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if dish.Price < 0 {
		respondError(w, http.StatusBadRequest, "price must not be negative")
		return
	}
	if routeID := chi.URLParam(r, "dishID"); routeID != "" {
		dish.ID = routeID
	}

	if dish.ID == "" {
		id, err := s.deps.Menu.AddDish(r.Context(), dish)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"id": id})
		return
	}
	if err := s.deps.Menu.UpdateDish(r.Context(), dish); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": dish.ID})
}

func (s *server) handleDeleteDish(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Menu.DeleteDish(r.Context(), chi.URLParam(r, "dishID")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	cart, err := s.deps.Cart.GetCart(r.Context(), claims.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items": cart,
		"total": cart.Total(),
	})
}

func (s *server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var item domain.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if item.DishID == "" {
		respondError(w, http.StatusBadRequest, "dishId is required")
		return
	}
	if err := s.deps.Cart.AddItem(r.Context(), claims.UserID, item); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var item domain.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	item.DishID = chi.URLParam(r, "dishID")
	if item.Quantity < 1 {
		respondError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}
	if err := s.deps.Cart.UpdateItem(r.Context(), claims.UserID, item); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := s.deps.Cart.RemoveItem(r.Context(), claims.UserID, chi.URLParam(r, "dishID")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := s.deps.Cart.Clear(r.Context(), claims.UserID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req struct {
		OrderName string `json:"orderName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.OrderName == "" {
		req.OrderName = claims.Email
	}
	orderID, err := s.deps.Cart.Checkout(r.Context(), claims.UserID, req.OrderName)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"orderId": orderID})
}

// handleListOrders serves the kitchen board's current view-state value:
// status, data (possibly stale on error) and the error message, exactly as
// a screen would render it.
func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, resourceBody(s.deps.Kitchen.OrdersState().Get()))
}

func (s *server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := s.deps.Kitchen.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), status); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
