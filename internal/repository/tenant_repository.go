package repository

import (
	"context"

	"github.com/google/uuid"
)

type tenantRepository struct {
	db DBTX
}

func NewTenantRepository(db DBTX) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) BelongsToTenant(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM tenant_users
            WHERE tenant_id = $1 AND user_id = $2
        )
    `, tenantID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
