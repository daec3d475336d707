package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"marketpulse/internal/domain/audit"
)

type auditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO audit_log (id, tenant_id, action, entity_type, entity_id, actor_id, result, detail, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `,
		entry.ID,
		entry.TenantID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		uuidPtr(entry.ActorID),
		entry.Result,
		entry.Detail,
		entry.CreatedAt,
	)
	return err
}

func (r *auditRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, tenant_id, action, entity_type, entity_id, actor_id, result, detail, created_at
        FROM audit_log
        WHERE tenant_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry   audit.Entry
			actorID uuid.NullUUID
			detail  sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&actorID,
			&entry.Result,
			&detail,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if actorID.Valid {
			entry.ActorID = &actorID.UUID
		}
		if detail.Valid {
			entry.Detail = detail.String
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
