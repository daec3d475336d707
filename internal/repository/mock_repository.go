package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/domain/audit"
	"marketpulse/internal/domain/execution"
	mp_errors "marketpulse/pkg/errors"
)

// MockExecutionRepository is an in-memory ExecutionRepository for tests. It
// mirrors the SQL implementation's conditional-update semantics under a
// mutex, so concurrency-sensitive service tests exercise the same
// exactly-once behavior as the real ledger.
type MockExecutionRepository struct {
	mu      sync.Mutex
	records map[string]*execution.ExecutionRecord
}

func NewMockExecutionRepository() *MockExecutionRepository {
	return &MockExecutionRepository{records: make(map[string]*execution.ExecutionRecord)}
}

func mockKey(tenantID uuid.UUID, requestID string) string {
	return tenantID.String() + "/" + requestID
}

func (m *MockExecutionRepository) Create(_ context.Context, rec *execution.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// request_id carries a global unique constraint, not a per-tenant one.
	for _, existing := range m.records {
		if existing.RequestID == rec.RequestID {
			return mp_errors.ErrAlreadyExists
		}
	}
	clone := *rec
	m.records[mockKey(rec.TenantID, rec.RequestID)] = &clone
	return nil
}

func (m *MockExecutionRepository) GetByRequestID(_ context.Context, tenantID uuid.UUID, requestID string) (execution.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[mockKey(tenantID, requestID)]
	if !ok {
		return execution.ExecutionRecord{}, mp_errors.ErrNotFound
	}
	return *rec, nil
}

func (m *MockExecutionRepository) UpdateStatus(_ context.Context, tenantID uuid.UUID, requestID string, status execution.Status, result json.RawMessage, errDetail *string) (execution.ExecutionRecord, error) {
	if !status.IsValid() {
		return execution.ExecutionRecord{}, mp_errors.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[mockKey(tenantID, requestID)]
	if !ok {
		return execution.ExecutionRecord{}, mp_errors.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return *rec, mp_errors.ErrAlreadyFinalized
	}

	now := time.Now().UTC()
	rec.Status = status
	if len(result) > 0 {
		rec.ResultPayload = append(json.RawMessage(nil), result...)
	}
	if errDetail != nil {
		detail := *errDetail
		rec.ErrorDetail = &detail
	}
	rec.UpdatedAt = now
	if status.IsTerminal() {
		rec.CompletedAt = &now
	}
	return *rec, nil
}

func (m *MockExecutionRepository) ListByTenant(_ context.Context, tenantID uuid.UUID, status *execution.Status, limit int) ([]execution.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var records []execution.ExecutionRecord
	for _, rec := range m.records {
		if rec.TenantID != tenantID {
			continue
		}
		if status != nil && rec.Status != *status {
			continue
		}
		records = append(records, *rec)
		if len(records) == limit {
			break
		}
	}
	return records, nil
}

// MockAuditRepository collects audit entries in memory.
type MockAuditRepository struct {
	mu      sync.Mutex
	Entries []audit.Entry
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Create(_ context.Context, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, *entry)
	return nil
}

func (m *MockAuditRepository) ListByTenant(_ context.Context, tenantID uuid.UUID, limit int) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []audit.Entry
	for _, e := range m.Entries {
		if e.TenantID == tenantID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Count returns the number of captured entries.
func (m *MockAuditRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Entries)
}

// MockTenantRepository answers membership checks from a static map.
type MockTenantRepository struct {
	Members map[string]bool
}

func NewMockTenantRepository() *MockTenantRepository {
	return &MockTenantRepository{Members: make(map[string]bool)}
}

func (m *MockTenantRepository) Allow(userID, tenantID uuid.UUID) {
	m.Members[mockKey(tenantID, userID.String())] = true
}

func (m *MockTenantRepository) BelongsToTenant(_ context.Context, userID, tenantID uuid.UUID) (bool, error) {
	return m.Members[mockKey(tenantID, userID.String())], nil
}
