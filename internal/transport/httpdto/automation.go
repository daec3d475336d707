package httpdto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// DispatchRequest triggers an automation workflow for a business event.
// Tenant and actor come from the authenticated request context, never the
// body.
type DispatchRequest struct {
	EventType       string                 `json:"event_type" binding:"required"`
	EventPayload    json.RawMessage        `json:"event_payload"`
	RelatedEntityID *uuid.UUID             `json:"related_entity_id"`
	ExtraContext    map[string]interface{} `json:"extra_context"`
}

type DispatchResponse struct {
	RequestID string `json:"request_id"`
}

// CallbackRequest is the runner's webhook payload. The runner echoes back the
// tenant and request ids it was dispatched with; field validation happens in
// the reconciler so rejections share one code path.
type CallbackRequest struct {
	RequestID     string          `json:"request_id"`
	TenantID      string          `json:"tenant_id"`
	Status        string          `json:"status"`
	ResultPayload json.RawMessage `json:"result_payload"`
	ErrorDetail   string          `json:"error_detail"`
}

type CallbackResponse struct {
	Accepted bool `json:"accepted"`
}
