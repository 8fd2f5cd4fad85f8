package notify

import (
	"context"
	"database/sql"
)

// PostgresRepo stores attempts in notification_attempts (INSERT-only).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, a Attempt) error {
	const q = `
INSERT INTO notification_attempts (id, recipient, message, type, provider, success, error, external_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.Recipient, a.Message, string(a.Type), a.Provider, a.Success, a.Error, a.ExternalID, a.CreatedAt)
	return err
}

func (r *PostgresRepo) ListByRecipient(ctx context.Context, recipient string, limit int) ([]Attempt, error) {
	const q = `
SELECT id, recipient, message, type, provider, success, COALESCE(error, ''), COALESCE(external_id, ''), created_at
FROM notification_attempts
WHERE recipient = $1
ORDER BY created_at DESC
LIMIT $2
`
	return r.list(ctx, q, recipient, clampLimit(limit))
}

func (r *PostgresRepo) ListByProvider(ctx context.Context, provider string, limit int) ([]Attempt, error) {
	const q = `
SELECT id, recipient, message, type, provider, success, COALESCE(error, ''), COALESCE(external_id, ''), created_at
FROM notification_attempts
WHERE provider = $1
ORDER BY created_at DESC
LIMIT $2
`
	return r.list(ctx, q, provider, clampLimit(limit))
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]Attempt, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var typ string
		if err := rows.Scan(&a.ID, &a.Recipient, &a.Message, &typ, &a.Provider, &a.Success, &a.Error, &a.ExternalID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = MessageType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
