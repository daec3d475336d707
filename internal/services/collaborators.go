package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/domain/audit"
	"marketpulse/internal/domain/memory"
	"marketpulse/internal/redis"
	"marketpulse/internal/repository"
	"marketpulse/internal/runner"
	"marketpulse/pkg/logger"
)

// RunnerClient is the outbound side of the external automation runner.
type RunnerClient interface {
	TriggerWorkflow(ctx context.Context, req runner.DispatchRequest) error
	HealthCheck(ctx context.Context) error
}

// MemoryContextProvider supplies the contextual-memory snapshot used to
// enrich outbound payloads. Failures are swallowed by the dispatcher.
type MemoryContextProvider interface {
	GetMemoryContext(ctx context.Context, tenantID, userID uuid.UUID) (*memory.Context, error)
}

// AuditSink records business-significant actions. Implementations must be
// fire-and-forget: a failed audit write never affects the caller.
type AuditSink interface {
	Log(ctx context.Context, tenantID uuid.UUID, action, entityType, entityID string, actorID *uuid.UUID, result, detail string)
}

// TenantValidator answers whether a user belongs to a tenant. Consulted by
// user-initiated commands before they touch the ledger.
type TenantValidator interface {
	BelongsToTenant(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
}

// ArchiveStore retains terminal callback payloads, best-effort.
type ArchiveStore interface {
	ArchiveCallback(ctx context.Context, tenantID, requestID string, payload []byte) error
}

// MemoryContextService is the redis-backed MemoryContextProvider.
type MemoryContextService struct {
	store *redis.MemoryStore
}

func NewMemoryContextService(store *redis.MemoryStore) *MemoryContextService {
	return &MemoryContextService{store: store}
}

func (s *MemoryContextService) GetMemoryContext(ctx context.Context, tenantID, userID uuid.UUID) (*memory.Context, error) {
	return s.store.Snapshot(ctx, tenantID, userID)
}

// AuditService writes audit entries to Postgres on a detached goroutine.
type AuditService struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewAuditService(repo repository.AuditRepository, l *logger.Logger) *AuditService {
	return &AuditService{repo: repo, logger: l}
}

func (s *AuditService) Log(ctx context.Context, tenantID uuid.UUID, action, entityType, entityID string, actorID *uuid.UUID, result, detail string) {
	entry := &audit.Entry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Result:     result,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	// Detached from the caller: the audit trail is best-effort and must not
	// block or fail the business transition that produced it.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	go func() {
		defer cancel()
		if err := s.repo.Create(writeCtx, entry); err != nil && s.logger != nil {
			s.logger.Warnf("audit write failed for %s/%s: %v", entry.Action, entry.EntityID, err)
		}
	}()
}

func (s *AuditService) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]audit.Entry, error) {
	return s.repo.ListByTenant(ctx, tenantID, limit)
}

// TenantService is the Postgres-backed TenantValidator.
type TenantService struct {
	repo repository.TenantRepository
}

func NewTenantService(repo repository.TenantRepository) *TenantService {
	return &TenantService{repo: repo}
}

func (s *TenantService) BelongsToTenant(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	return s.repo.BelongsToTenant(ctx, userID, tenantID)
}
