package credentials

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo stores credentials in the credentials table:
// PRIMARY KEY (category, key); values are sealed by the Store before reaching SQL.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context, category, key string) (Entry, error) {
	const q = `
SELECT category, key, value, is_encrypted, COALESCE(description, ''), updated_at
FROM credentials
WHERE category = $1 AND key = $2
`
	var e Entry
	if err := r.db.QueryRowContext(ctx, q, category, key).Scan(
		&e.Category,
		&e.Key,
		&e.Value,
		&e.IsEncrypted,
		&e.Description,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO credentials (category, key, value, is_encrypted, description, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
ON CONFLICT (category, key) DO UPDATE SET
  value = EXCLUDED.value,
  is_encrypted = EXCLUDED.is_encrypted,
  description = COALESCE(EXCLUDED.description, credentials.description),
  updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q, e.Category, e.Key, e.Value, e.IsEncrypted, e.Description, e.UpdatedAt)
	return err
}
