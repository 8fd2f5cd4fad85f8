package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recruit-comms/pkg/utils"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrStaleTransition = errors.New("call status changed concurrently")
)

// Update is the projection applied together with a transition event.
// Nil pointers leave the stored column untouched.
type Update struct {
	Status          Status
	DurationSeconds *int
	CostCents       *int64
	RecordingURL    *string
	UpdatedAt       time.Time
}

type Repository interface {
	// CreateWithEvent stores the call row and its first event atomically.
	CreateWithEvent(ctx context.Context, c Call, e Event) error
	GetByID(ctx context.Context, id string) (Call, error)
	GetByExternalID(ctx context.Context, externalID string) (Call, error)
	// ApplyTransition updates the call only if its status is still from,
	// appending e in the same unit of work. Otherwise it returns ErrStaleTransition.
	ApplyTransition(ctx context.Context, callID string, from Status, u Update, e Event) error
	AppendEvent(ctx context.Context, e Event) error
	// ListByOrganization returns calls newest first.
	ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]Call, error)
	// ListEvents returns events in insertion order.
	ListEvents(ctx context.Context, callID string) ([]Event, error)
}

type OrganizationRepository interface {
	GetOrganization(ctx context.Context, id string) (Organization, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const callColumns = `id, COALESCE(organization_id, ''), to_number, from_number, status, external_id, metadata,
  duration_seconds, cost_cents, COALESCE(recording_url, ''), created_at, updated_at`

func (r *PostgresRepo) CreateWithEvent(ctx context.Context, c Call, e Event) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO voice_calls (id, organization_id, to_number, from_number, status, external_id, metadata,
  duration_seconds, cost_cents, recording_url, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
`
		if _, err := tx.ExecContext(ctx, q,
			c.ID, c.OrganizationID, c.To, c.From, string(c.Status), c.ExternalID, meta,
			c.DurationSeconds, c.CostCents, c.RecordingURL, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert call: %w", err)
		}
		return insertEvent(ctx, tx, e)
	})
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM voice_calls WHERE id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetByExternalID(ctx context.Context, externalID string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM voice_calls WHERE external_id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, externalID))
}

func (r *PostgresRepo) ApplyTransition(ctx context.Context, callID string, from Status, u Update, e Event) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
UPDATE voice_calls SET
  status = $1,
  duration_seconds = COALESCE($2, duration_seconds),
  cost_cents = COALESCE($3, cost_cents),
  recording_url = COALESCE($4, recording_url),
  updated_at = $5
WHERE id = $6 AND status = $7
`
		res, err := tx.ExecContext(ctx, q,
			string(u.Status), nullInt(u.DurationSeconds), nullInt64(u.CostCents), nullString(u.RecordingURL),
			u.UpdatedAt, callID, string(from),
		)
		if err != nil {
			return fmt.Errorf("update call: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStaleTransition
		}
		return insertEvent(ctx, tx, e)
	})
}

func (r *PostgresRepo) AppendEvent(ctx context.Context, e Event) error {
	return insertEvent(ctx, r.db, e)
}

func (r *PostgresRepo) ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]Call, error) {
	q := `SELECT ` + callColumns + `
FROM voice_calls
WHERE organization_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCreatedBetween returns the organization's calls created in [from, to), oldest first.
func (r *PostgresRepo) ListCreatedBetween(ctx context.Context, orgID string, from, to time.Time) ([]Call, error) {
	q := `SELECT ` + callColumns + `
FROM voice_calls
WHERE organization_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListEvents(ctx context.Context, callID string) ([]Event, error) {
	const q = `
SELECT id, call_id, type, payload, created_at
FROM voice_call_events
WHERE call_id = $1
ORDER BY seq ASC
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.CallID, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetOrganization(ctx context.Context, id string) (Organization, error) {
	const q = `SELECT id, name FROM organizations WHERE id = $1`
	var o Organization
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&o.ID, &o.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return o, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, e Event) error {
	const q = `
INSERT INTO voice_call_events (id, call_id, type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	var payload any
	if len(e.Payload) > 0 {
		payload = []byte(e.Payload)
	}
	if _, err := db.ExecContext(ctx, q, e.ID, e.CallID, e.Type, payload, e.CreatedAt); err != nil {
		return fmt.Errorf("insert call event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var status string
	var meta []byte
	if err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.To,
		&c.From,
		&status,
		&c.ExternalID,
		&meta,
		&c.DurationSeconds,
		&c.CostCents,
		&c.RecordingURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	c.Status = Status(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return Call{}, fmt.Errorf("decode call metadata: %w", err)
		}
	}
	return c, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
