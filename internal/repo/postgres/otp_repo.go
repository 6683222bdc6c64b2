package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// OTPRepo stores one-time login codes. Codes are kept bcrypt-hashed and
// a code is deleted the moment it verifies.
type OTPRepo interface {
	Create(ctx context.Context, curp, codeHash string, expiresAt time.Time) error
	Consume(ctx context.Context, curp, code string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type OTPRepoImpl struct {
	pool *pgxpool.Pool
}

func NewOTPRepo(pool *pgxpool.Pool) *OTPRepoImpl {
	return &OTPRepoImpl{pool: pool}
}

func (r *OTPRepoImpl) Create(ctx context.Context, curp, codeHash string, expiresAt time.Time) error {
	const q = `
INSERT INTO otp_codes (curp, code_hash, expires_at)
VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, curp, codeHash, expiresAt)
	return err
}

func (r *OTPRepoImpl) Consume(ctx context.Context, curp, code string) (bool, error) {
	const q = `
SELECT id, code_hash, expires_at
FROM otp_codes
WHERE curp = $1
ORDER BY id DESC
LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		id      int64
		hash    string
		expires time.Time
	)
	err := r.pool.QueryRow(ctx, q, curp).Scan(&id, &hash, &expires)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if time.Now().After(expires) {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return false, nil
	}

	_, _ = r.pool.Exec(ctx, `DELETE FROM otp_codes WHERE id = $1`, id)
	return true, nil
}

func (r *OTPRepoImpl) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM otp_codes WHERE expires_at < now()`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
