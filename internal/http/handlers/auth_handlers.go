package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/internal/http/response"
)

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "JSON invalido.", response.CodeInvalidInput)
		return
	}

	pair, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "JSON invalido.", response.CodeInvalidInput)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "Token requerido.", response.CodeUnauthorized)
		return
	}

	if err := h.auth.Logout(r.Context(), claims.Sub); err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CURP string `json:"curp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "JSON invalido.", response.CodeInvalidInput)
		return
	}

	code, err := h.auth.SendOTP(r.Context(), req.CURP)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	resp := map[string]string{"message": "OTP generado."}
	if h.cfg.Auth.DevMode {
		resp["otp"] = code
	}
	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CURP string `json:"curp"`
		OTP  string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "JSON invalido.", response.CodeInvalidInput)
		return
	}

	pair, err := h.auth.VerifyOTP(r.Context(), req.CURP, req.OTP)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, pair)
}

// Me returns the authenticated account's public fields.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "Token requerido.", response.CodeUnauthorized)
		return
	}

	account, err := h.auth.GetAccount(r.Context(), claims.Sub)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, account)
}
