package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to audit_events. No UPDATE or DELETE statements exist here.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, organization_id, type, actor_user_id, actor_role, ip_address,
  call_id, category, provider, message, metadata, created_at
) VALUES (
  $1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
  NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, '')::jsonb, $12
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.OrganizationID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.CallID, e.Category, e.Provider, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

// ListByOrganization returns the newest events first.
func (r *PostgresRepo) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]Event, error) {
	const q = `
SELECT id, organization_id, type, COALESCE(actor_user_id, ''), COALESCE(actor_role, ''),
       COALESCE(ip_address, ''), COALESCE(call_id, ''), COALESCE(category, ''),
       COALESCE(provider, ''), COALESCE(message, ''), COALESCE(metadata::text, ''), created_at
FROM audit_events
WHERE organization_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, organizationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &e.OrganizationID, &typ, &e.ActorUserID, &e.ActorRole,
			&e.IPAddress, &e.CallID, &e.Category, &e.Provider, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
