package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarjetajoven/api/internal/domain"
)

// AuditRepo appends audit entries outside a cardholder transaction. The
// lookup path uses it best-effort after its own commit; the provisioning
// path writes through CardholderTx instead so the entry rides the same
// transaction.
type AuditRepo interface {
	Append(ctx context.Context, cardholderID int64, action, ip string) error
	ListByCardholder(ctx context.Context, cardholderID int64, limit int) ([]domain.AuditEntry, error)
}

type AuditRepoImpl struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepoImpl {
	return &AuditRepoImpl{pool: pool}
}

func (r *AuditRepoImpl) Append(ctx context.Context, cardholderID int64, action, ip string) error {
	const q = `
INSERT INTO cardholder_audit_logs (cardholder_id, action, ip_address)
VALUES ($1, $2, NULLIF($3, ''))`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, cardholderID, action, ip)
	return err
}

func (r *AuditRepoImpl) ListByCardholder(ctx context.Context, cardholderID int64, limit int) ([]domain.AuditEntry, error) {
	const q = `
SELECT id, cardholder_id, action, COALESCE(ip_address, ''), created_at
FROM cardholder_audit_logs
WHERE cardholder_id = $1
ORDER BY id DESC
LIMIT $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, cardholderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.CardholderID, &e.Action, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
