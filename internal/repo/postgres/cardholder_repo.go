package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/pkg/logger"
)

// CardholderTx is the set of mutations available while the cardholder
// row is locked. All of them run on the same transaction, so either the
// whole operation commits or none of it does.
type CardholderTx interface {
	// Cardholder returns the row as read under the lock, nil when the
	// CURP does not exist.
	Cardholder() *domain.Cardholder

	// RecordAttempt persists the incremented lookup counter, the attempt
	// timestamp and (when the limit was exceeded) the cool-down lock.
	RecordAttempt(ctx context.Context, attempts int, at time.Time, blockedUntil *time.Time) error

	// OpenWindow persists the counter plus a fresh provisioning window
	// and clears any cool-down lock.
	OpenWindow(ctx context.Context, attempts int, at time.Time, until time.Time) error

	// LoginTaken reports whether an existing account already uses the
	// username or the CURP.
	LoginTaken(ctx context.Context, username, curp string) (bool, error)

	// CreateAccount inserts the account, links it to the cardholder,
	// clears the provisioning window and resets the attempt counter.
	CreateAccount(ctx context.Context, a *domain.NewAccount) (int64, error)

	// AppendAudit writes an audit entry on the same transaction.
	AppendAudit(ctx context.Context, action, ip string) error
}

// CardholdersRepo serializes all counter and provisioning mutations for
// a single cardholder behind a row lock.
type CardholdersRepo interface {
	WithLock(ctx context.Context, curp string, fn func(tx CardholderTx) error) error
}

type CardholdersRepoImpl struct {
	pool *pgxpool.Pool
}

func NewCardholdersRepo(pool *pgxpool.Pool) *CardholdersRepoImpl {
	return &CardholdersRepoImpl{pool: pool}
}

// WithLock begins a transaction, locks the cardholder row for the given
// CURP (if it exists) and runs fn. The transaction commits when fn
// returns nil and rolls back otherwise; a rollback failure is logged but
// fn's error takes precedence.
func (r *CardholdersRepoImpl) WithLock(ctx context.Context, curp string, fn func(tx CardholderTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pgtx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	tx := &cardholderTx{tx: pgtx}
	if err := tx.load(ctx, curp); err != nil {
		_ = pgtx.Rollback(ctx)
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := pgtx.Rollback(ctx); rbErr != nil {
			logger.ErrorContext(ctx, "Failed to roll back cardholder transaction", "error", rbErr, "curp", curp)
		}
		return err
	}

	return pgtx.Commit(ctx)
}

type cardholderTx struct {
	tx pgx.Tx
	ch *domain.Cardholder
}

func (t *cardholderTx) load(ctx context.Context, curp string) error {
	const q = `
SELECT ch.id, ch.curp, ch.nombres, ch.apellidos, ch.municipio_id,
       COALESCE(m.nombre, ''), ch.card_number, ch.status,
       ch.lookup_attempts, ch.last_lookup_attempt_at,
       ch.lookup_blocked_until, ch.pending_account_until, ch.account_user_id
FROM cardholders ch
LEFT JOIN municipios m ON ch.municipio_id = m.id
WHERE ch.curp = $1
FOR UPDATE OF ch`

	var ch domain.Cardholder
	err := t.tx.QueryRow(ctx, q, curp).Scan(
		&ch.ID, &ch.CURP, &ch.Nombres, &ch.Apellidos, &ch.MunicipioID,
		&ch.Municipio, &ch.CardNumber, &ch.Status,
		&ch.Attempts, &ch.LastAttemptAt,
		&ch.BlockedUntil, &ch.WindowUntil, &ch.AccountUserID,
	)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	t.ch = &ch
	return nil
}

func (t *cardholderTx) Cardholder() *domain.Cardholder {
	return t.ch
}

func (t *cardholderTx) RecordAttempt(ctx context.Context, attempts int, at time.Time, blockedUntil *time.Time) error {
	const q = `
UPDATE cardholders
SET lookup_attempts = $1, last_lookup_attempt_at = $2, lookup_blocked_until = $3
WHERE id = $4`

	_, err := t.tx.Exec(ctx, q, attempts, at, blockedUntil, t.ch.ID)
	return err
}

func (t *cardholderTx) OpenWindow(ctx context.Context, attempts int, at time.Time, until time.Time) error {
	const q = `
UPDATE cardholders
SET lookup_attempts = $1, last_lookup_attempt_at = $2,
    lookup_blocked_until = NULL, pending_account_until = $3
WHERE id = $4`

	_, err := t.tx.Exec(ctx, q, attempts, at, until, t.ch.ID)
	return err
}

func (t *cardholderTx) LoginTaken(ctx context.Context, username, curp string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM usuarios WHERE email = $1 OR curp = $2)`

	var taken bool
	if err := t.tx.QueryRow(ctx, q, username, curp).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

func (t *cardholderTx) CreateAccount(ctx context.Context, a *domain.NewAccount) (int64, error) {
	const insert = `
INSERT INTO usuarios (nombre, apellidos, curp, email, telefono, municipio_id, password_hash)
VALUES ($1, $2, $3, $4, NULL, $5, $6)
RETURNING id`

	var userID int64
	if err := t.tx.QueryRow(ctx, insert,
		a.Nombre, a.Apellidos, a.CURP, a.Email, a.MunicipioID, a.PasswordHash,
	).Scan(&userID); err != nil {
		return 0, err
	}

	const link = `
UPDATE cardholders
SET account_user_id = $1, pending_account_until = NULL, lookup_attempts = 0
WHERE id = $2`

	if _, err := t.tx.Exec(ctx, link, userID, t.ch.ID); err != nil {
		return 0, err
	}
	return userID, nil
}

func (t *cardholderTx) AppendAudit(ctx context.Context, action, ip string) error {
	const q = `
INSERT INTO cardholder_audit_logs (cardholder_id, action, ip_address)
VALUES ($1, $2, NULLIF($3, ''))`

	_, err := t.tx.Exec(ctx, q, t.ch.ID, action, ip)
	return err
}
