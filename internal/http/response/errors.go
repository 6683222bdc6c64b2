package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/pkg/logger"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	HasAccount *bool  `json:"hasAccount,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeInternalError = "INTERNAL_ERROR"
)

func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// FromError maps a domain error to its HTTP shape. Unknown errors are
// logged with full context and surfaced as a generic 500; no internal
// detail crosses the boundary.
func FromError(ctx context.Context, w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusUnprocessableEntity, ve.Message, CodeInvalidInput)
	case errors.Is(err, domain.ErrCardNotAvailable):
		WriteError(w, http.StatusNotFound, "La tarjeta no se encuentra activa.", CodeNotFound)
	case errors.Is(err, domain.ErrWindowExpired):
		WriteError(w, http.StatusNotFound, "Debes validar tu CURP antes de crear la cuenta. Intenta el lookup nuevamente.", CodeNotFound)
	case errors.Is(err, domain.ErrAccountExists):
		hasAccount := true
		WriteJSON(w, http.StatusConflict, ErrorResponse{
			Error:      "La CURP ya cuenta con credenciales activas.",
			Code:       CodeConflict,
			HasAccount: &hasAccount,
		})
	case errors.Is(err, domain.ErrAlreadyRegistered):
		WriteError(w, http.StatusConflict, "El usuario o CURP ya estan registrados.", CodeConflict)
	case errors.Is(err, domain.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "Se excedio el numero de intentos. Intenta nuevamente mas tarde.", CodeRateLimit)
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "Credenciales invalidas.", CodeUnauthorized)
	case errors.Is(err, domain.ErrInvalidOTP):
		WriteError(w, http.StatusBadRequest, "Codigo OTP invalido o expirado.", CodeInvalidInput)
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "No encontrado.", CodeNotFound)
	default:
		logger.ErrorContext(ctx, "Unhandled error", "error", err)
		WriteError(w, http.StatusInternalServerError, "Error interno.", CodeInternalError)
	}
}
