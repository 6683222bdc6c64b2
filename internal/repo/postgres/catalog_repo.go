package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarjetajoven/api/internal/domain"
)

type CatalogRepo interface {
	List(ctx context.Context, f domain.CatalogFilter) (*domain.CatalogPage, error)
	Municipios(ctx context.Context) ([]domain.Municipio, error)
}

type CatalogRepoImpl struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepoImpl {
	return &CatalogRepoImpl{pool: pool}
}

func (r *CatalogRepoImpl) List(ctx context.Context, f domain.CatalogFilter) (*domain.CatalogPage, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	where := []string{"1=1"}
	args := []any{}

	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf("(b.nombre ILIKE $%d OR b.descripcion ILIKE $%d)", len(args), len(args)))
	}
	if f.Categoria != "" {
		args = append(args, f.Categoria)
		where = append(where, fmt.Sprintf("c.nombre = $%d", len(args)))
	}
	if f.Municipio != "" {
		args = append(args, f.Municipio)
		where = append(where, fmt.Sprintf("m.nombre = $%d", len(args)))
	}

	const from = `
FROM beneficios b
LEFT JOIN categorias c ON b.categoria_id = c.id
LEFT JOIN municipios m ON b.municipio_id = m.id
WHERE `
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+from+cond, args...).Scan(&total); err != nil {
		return nil, err
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	q := fmt.Sprintf(`
SELECT b.id, b.nombre, COALESCE(c.nombre, ''), COALESCE(m.nombre, ''),
       b.descuento, b.direccion, b.horario, b.descripcion, b.lat, b.lng
%s%s
ORDER BY b.id
LIMIT $%d OFFSET $%d`, from, cond, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Benefit{}
	for rows.Next() {
		var b domain.Benefit
		if err := rows.Scan(
			&b.ID, &b.Nombre, &b.Categoria, &b.Municipio,
			&b.Descuento, &b.Direccion, &b.Horario, &b.Descripcion, &b.Lat, &b.Lng,
		); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := (total + f.PageSize - 1) / f.PageSize
	return &domain.CatalogPage{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (r *CatalogRepoImpl) Municipios(ctx context.Context) ([]domain.Municipio, error) {
	const q = `SELECT id, nombre FROM municipios ORDER BY nombre`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Municipio
	for rows.Next() {
		var m domain.Municipio
		if err := rows.Scan(&m.ID, &m.Nombre); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
