package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/tarjetajoven/api/internal/http/response"
	"github.com/tarjetajoven/api/internal/service"
	"github.com/tarjetajoven/api/pkg/auth"
	"github.com/tarjetajoven/api/pkg/config"
	"github.com/tarjetajoven/api/pkg/logger"
)

type claimsKey struct{}

type Handlers struct {
	cardholders service.CardholderService
	auth        service.AuthService
	catalog     service.CatalogService
	cfg         *config.Config
}

func New(
	cardholders service.CardholderService,
	authService service.AuthService,
	catalog service.CatalogService,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		cardholders: cardholders,
		auth:        authService,
		catalog:     catalog,
		cfg:         cfg,
	}
}

// RequireJWT guards a route with a Bearer access token.
func (h *Handlers) RequireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.WriteError(w, http.StatusUnauthorized, "Token requerido.", response.CodeUnauthorized)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.Parse(token, h.cfg.Auth.JWTSecret)
		if err != nil {
			response.WriteError(w, http.StatusUnauthorized, "Token invalido.", response.CodeUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
		ctx = context.WithValue(ctx, claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}

	return page, pageSize
}
