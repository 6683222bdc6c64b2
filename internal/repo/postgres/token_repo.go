package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefreshTokensRepo interface {
	Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	// Find returns the owning user of a live refresh token.
	Find(ctx context.Context, token string) (userID int64, ok bool, err error)
	DeleteForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type RefreshTokensRepoImpl struct {
	pool *pgxpool.Pool
}

func NewRefreshTokensRepo(pool *pgxpool.Pool) *RefreshTokensRepoImpl {
	return &RefreshTokensRepoImpl{pool: pool}
}

func (r *RefreshTokensRepoImpl) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	const q = `
INSERT INTO refresh_tokens (usuario_id, refresh_token, expiry_date)
VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, userID, token, expiresAt)
	return err
}

func (r *RefreshTokensRepoImpl) Find(ctx context.Context, token string) (int64, bool, error) {
	const q = `
SELECT usuario_id
FROM refresh_tokens
WHERE refresh_token = $1 AND expiry_date > now()`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var userID int64
	err := r.pool.QueryRow(ctx, q, token).Scan(&userID)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return userID, true, nil
}

func (r *RefreshTokensRepoImpl) DeleteForUser(ctx context.Context, userID int64) error {
	const q = `DELETE FROM refresh_tokens WHERE usuario_id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, userID)
	return err
}

func (r *RefreshTokensRepoImpl) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM refresh_tokens WHERE expiry_date < now()`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
