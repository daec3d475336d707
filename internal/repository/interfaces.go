package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"marketpulse/internal/domain/audit"
	"marketpulse/internal/domain/execution"
)

// ExecutionRepository is the tenant-scoped execution ledger. Every lookup
// and mutation is keyed by (tenantID, requestID); a record belonging to one
// tenant is invisible to every other tenant even when the requestID matches.
type ExecutionRepository interface {
	Create(ctx context.Context, rec *execution.ExecutionRecord) error
	GetByRequestID(ctx context.Context, tenantID uuid.UUID, requestID string) (execution.ExecutionRecord, error)

	// UpdateStatus is a single atomic conditional update: it only touches
	// rows whose current status is non-terminal. It returns the updated
	// record, ErrAlreadyFinalized when the row exists but is terminal, or
	// ErrNotFound when no row matches (tenantID, requestID).
	UpdateStatus(ctx context.Context, tenantID uuid.UUID, requestID string, status execution.Status, result json.RawMessage, errDetail *string) (execution.ExecutionRecord, error)

	ListByTenant(ctx context.Context, tenantID uuid.UUID, status *execution.Status, limit int) ([]execution.ExecutionRecord, error)
}

type AuditRepository interface {
	Create(ctx context.Context, entry *audit.Entry) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]audit.Entry, error)
}

type TenantRepository interface {
	BelongsToTenant(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
}
