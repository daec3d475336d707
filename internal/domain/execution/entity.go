package execution

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	mp_errors "marketpulse/pkg/errors"
)

// Status is the lifecycle state of a dispatched automation request.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal forward move.
// Terminal states are sticky; Pending never regresses from Processing.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusProcessing:
		return from == StatusPending || from == StatusProcessing
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// ParseCallbackStatus maps the status string carried by a runner callback
// onto the ledger state machine. Runners differ in vocabulary; any
// recognized non-terminal signal is coerced to Processing. Unknown values
// are a validation error, not a transition.
func ParseCallbackStatus(raw string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED", "SUCCESS", "SUCCEEDED":
		return StatusCompleted, nil
	case "FAILED", "FAILURE", "ERROR":
		return StatusFailed, nil
	case "PENDING", "PROCESSING", "RUNNING", "STARTED", "QUEUED", "WAITING":
		return StatusProcessing, nil
	}
	return "", mp_errors.ErrInvalidInput
}

// ExecutionRecord is the durable ledger entry for one dispatched automation
// request. RequestID is the sole correlation key between the outbound
// dispatch and the eventual callback; it is immutable and unique across all
// tenants. Records are never deleted.
type ExecutionRecord struct {
	RequestID       string          `json:"request_id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	WorkflowID      string          `json:"workflow_id"`
	EventType       string          `json:"event_type"`
	Status          Status          `json:"status"`
	RelatedEntityID *uuid.UUID      `json:"related_entity_id,omitempty"`
	UserID          *uuid.UUID      `json:"user_id,omitempty"`
	ResultPayload   json.RawMessage `json:"result_payload,omitempty"`
	ErrorDetail     *string         `json:"error_detail,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// NewPendingRecord builds the initial ledger entry for a dispatch.
func NewPendingRecord(requestID string, tenantID uuid.UUID, workflowID, eventType string, userID, relatedEntityID *uuid.UUID) *ExecutionRecord {
	now := time.Now().UTC()
	return &ExecutionRecord{
		RequestID:       requestID,
		TenantID:        tenantID,
		WorkflowID:      workflowID,
		EventType:       eventType,
		Status:          StatusPending,
		UserID:          userID,
		RelatedEntityID: relatedEntityID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Callback is the payload delivered to the public webhook endpoint by the
// external runner. Delivery is at-least-once and may be out of order.
type Callback struct {
	RequestID     string          `json:"request_id"`
	Status        string          `json:"status"`
	ResultPayload json.RawMessage `json:"result_payload,omitempty"`
	ErrorDetail   string          `json:"error_detail,omitempty"`
}

// StatusView is the read-only projection returned to polling callers.
type StatusView struct {
	RequestID     string          `json:"request_id"`
	EventType     string          `json:"event_type"`
	WorkflowID    string          `json:"workflow_id"`
	Status        Status          `json:"status"`
	ResultPayload json.RawMessage `json:"result_payload,omitempty"`
	ErrorDetail   *string         `json:"error_detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// View projects the record into its read-only form.
func (r *ExecutionRecord) View() StatusView {
	return StatusView{
		RequestID:     r.RequestID,
		EventType:     r.EventType,
		WorkflowID:    r.WorkflowID,
		Status:        r.Status,
		ResultPayload: r.ResultPayload,
		ErrorDetail:   r.ErrorDetail,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CompletedAt:   r.CompletedAt,
	}
}
