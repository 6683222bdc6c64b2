package service

import (
	"context"
	"fmt"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/internal/repo/postgres"
)

type CatalogService interface {
	List(ctx context.Context, f domain.CatalogFilter) (*domain.CatalogPage, error)
	Municipios(ctx context.Context) ([]domain.Municipio, error)
}

type catalogService struct {
	catalog postgres.CatalogRepo
}

func NewCatalogService(catalog postgres.CatalogRepo) CatalogService {
	return &catalogService{catalog: catalog}
}

func (s *catalogService) List(ctx context.Context, f domain.CatalogFilter) (*domain.CatalogPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}

	page, err := s.catalog.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return page, nil
}

func (s *catalogService) Municipios(ctx context.Context) ([]domain.Municipio, error) {
	municipios, err := s.catalog.Municipios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list municipios: %w", err)
	}
	return municipios, nil
}
