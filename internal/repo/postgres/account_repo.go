package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarjetajoven/api/internal/domain"
)

type AccountsRepo interface {
	// FindByLogin matches the identifier against the username (email
	// column) or the CURP. Returns nil when no account matches.
	FindByLogin(ctx context.Context, login string) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByCURP(ctx context.Context, curp string) (*domain.Account, error)
}

type AccountsRepoImpl struct {
	pool *pgxpool.Pool
}

func NewAccountsRepo(pool *pgxpool.Pool) *AccountsRepoImpl {
	return &AccountsRepoImpl{pool: pool}
}

const accountColumns = `
u.id, u.nombre, u.apellidos, u.curp, u.email, u.telefono,
u.municipio_id, COALESCE(m.nombre, ''), u.password_hash, u.created_at`

func (r *AccountsRepoImpl) FindByLogin(ctx context.Context, login string) (*domain.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM usuarios u
LEFT JOIN municipios m ON u.municipio_id = m.id
WHERE u.email = $1 OR u.curp = $1`

	return r.findOne(ctx, q, login)
}

func (r *AccountsRepoImpl) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM usuarios u
LEFT JOIN municipios m ON u.municipio_id = m.id
WHERE u.id = $1`

	return r.findOne(ctx, q, id)
}

func (r *AccountsRepoImpl) FindByCURP(ctx context.Context, curp string) (*domain.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM usuarios u
LEFT JOIN municipios m ON u.municipio_id = m.id
WHERE u.curp = $1`

	return r.findOne(ctx, q, curp)
}

func (r *AccountsRepoImpl) findOne(ctx context.Context, q string, arg any) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a domain.Account
	err := r.pool.QueryRow(ctx, q, arg).Scan(
		&a.ID, &a.Nombre, &a.Apellidos, &a.CURP, &a.Email, &a.Telefono,
		&a.MunicipioID, &a.Municipio, &a.PasswordHash, &a.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
