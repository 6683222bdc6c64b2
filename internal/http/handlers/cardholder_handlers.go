package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/internal/http/middleware"
	"github.com/tarjetajoven/api/internal/http/response"
)

// Lookup validates possession of an active card and opens the
// provisioning window.
func (h *Handlers) Lookup(w http.ResponseWriter, r *http.Request) {
	var req domain.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusUnprocessableEntity, "El CURP es obligatorio.", response.CodeInvalidInput)
		return
	}

	result, err := h.cardholders.Lookup(r.Context(), &req, middleware.ClientIP(r))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

// CreateAccount converts an open provisioning window into a login
// account.
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	curp := chi.URLParam(r, "curp")

	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusUnprocessableEntity, "El nombre de usuario es obligatorio.", response.CodeInvalidInput)
		return
	}

	if err := h.cardholders.CreateAccount(r.Context(), curp, &req, middleware.ClientIP(r)); err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "Cuenta creada. Ya puedes iniciar sesion.",
	})
}
