package handlers

import (
	"net/http"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/internal/http/response"
)

func (h *Handlers) Catalog(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := domain.CatalogFilter{
		Query:     r.URL.Query().Get("q"),
		Categoria: r.URL.Query().Get("categoria"),
		Municipio: r.URL.Query().Get("municipio"),
		Page:      page,
		PageSize:  pageSize,
	}

	result, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

func (h *Handlers) Municipios(w http.ResponseWriter, r *http.Request) {
	municipios, err := h.catalog.Municipios(r.Context())
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, municipios)
}
