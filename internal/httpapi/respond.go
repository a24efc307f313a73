package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/resource"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondDomainError maps core errors onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, docstore.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// resourceBody serializes a Resource for the read endpoints that expose a
// view-state value directly.
func resourceBody[T any](r resource.Resource[T]) map[string]any {
	body := map[string]any{"status": r.Status().String()}
	if v, ok := r.Value(); ok {
		body["data"] = v
	}
	if r.IsError() {
		body["error"] = r.Message()
	}
	return body
}
