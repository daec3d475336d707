package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one row in the tenant audit trail. Writes are best-effort: an
// audit failure never rolls back the business transition that produced it.
type Entry struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Result     string     `json:"result"`
	Detail     string     `json:"detail,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILURE"
)
