package events

import (
	"time"

	"marketpulse/internal/domain/execution"
)

type Envelope struct {
	EventType  string    `json:"event_type"`
	TenantID   string    `json:"tenant_id"`
	RequestID  string    `json:"request_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTransitionEnvelope builds the envelope for a ledger status transition.
func NewTransitionEnvelope(rec execution.ExecutionRecord) Envelope {
	eventType := EventTypeExecutionProcessing
	switch rec.Status {
	case execution.StatusPending:
		eventType = EventTypeExecutionDispatched
	case execution.StatusCompleted:
		eventType = EventTypeExecutionCompleted
	case execution.StatusFailed:
		eventType = EventTypeExecutionFailed
	case execution.StatusTimedOut:
		eventType = EventTypeExecutionTimedOut
	}
	return Envelope{
		EventType:  eventType,
		TenantID:   rec.TenantID.String(),
		RequestID:  rec.RequestID,
		Status:     string(rec.Status),
		OccurredAt: rec.UpdatedAt,
	}
}

// Channel returns the per-tenant pub/sub channel for this envelope.
func (e Envelope) Channel() string {
	return ChannelForTenant(e.TenantID)
}

func ChannelForTenant(tenantID string) string {
	return "executions:" + tenantID
}

// ChannelPattern matches every tenant's execution channel.
const ChannelPattern = "executions:*"
