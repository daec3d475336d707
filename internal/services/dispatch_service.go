package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/domain/execution"
	"marketpulse/internal/events"
	"marketpulse/internal/repository"
	"marketpulse/internal/runner"
	mp_errors "marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

const enrichmentTimeout = 2 * time.Second

// DispatchInput carries everything needed to fire a business event at the
// external runner.
type DispatchInput struct {
	TenantID        uuid.UUID
	EventType       string
	EventPayload    json.RawMessage
	UserID          *uuid.UUID
	RelatedEntityID *uuid.UUID
	ExtraContext    map[string]interface{}
}

// DispatchService builds the outbound event, enriches it, records it in the
// execution ledger, and fires it at the runner. The ledger write happens
// strictly before the outbound call so a record always exists for any
// request the runner could possibly call back about.
type DispatchService struct {
	ledger      repository.ExecutionRepository
	runner      RunnerClient
	memory      MemoryContextProvider
	tenants     TenantValidator
	audit       AuditSink
	publisher   events.Publisher
	workflowMap map[string]string
	logger      *logger.Logger
}

func NewDispatchService(
	ledger repository.ExecutionRepository,
	runnerClient RunnerClient,
	memory MemoryContextProvider,
	tenants TenantValidator,
	auditSink AuditSink,
	publisher events.Publisher,
	workflowMap map[string]string,
	l *logger.Logger,
) *DispatchService {
	return &DispatchService{
		ledger:      ledger,
		runner:      runnerClient,
		memory:      memory,
		tenants:     tenants,
		audit:       auditSink,
		publisher:   publisher,
		workflowMap: workflowMap,
		logger:      l,
	}
}

// Dispatch returns the generated request id synchronously; the caller never
// blocks on workflow completion. An outbound transport failure is absorbed:
// the ledger entry stays Pending and later resolves via timeout inference.
func (s *DispatchService) Dispatch(ctx context.Context, in DispatchInput) (string, error) {
	if in.TenantID == uuid.Nil {
		return "", fmt.Errorf("%w: tenant id is required", mp_errors.ErrInvalidInput)
	}
	if in.EventType == "" {
		return "", fmt.Errorf("%w: event type is required", mp_errors.ErrInvalidInput)
	}

	if in.UserID != nil && s.tenants != nil {
		ok, err := s.tenants.BelongsToTenant(ctx, *in.UserID, in.TenantID)
		if err != nil {
			return "", fmt.Errorf("tenant validation: %w", err)
		}
		if !ok {
			return "", mp_errors.ErrForbidden
		}
	}

	workflowID, ok := s.workflowMap[in.EventType]
	if !ok {
		return "", fmt.Errorf("%w: no workflow configured for event type %q", mp_errors.ErrInvalidInput, in.EventType)
	}

	// Enrichment is best-effort preprocessing. It runs inline, before the
	// ledger write, so it can never race it; failure leaves ExtraContext
	// untouched and is reported to the log only.
	extraContext := s.enrich(ctx, in)

	requestID := uuid.NewString()
	rec := execution.NewPendingRecord(requestID, in.TenantID, workflowID, in.EventType, in.UserID, in.RelatedEntityID)
	if err := s.ledger.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("create execution record: %w", err)
	}

	s.publish(ctx, *rec)

	if err := s.runner.TriggerWorkflow(ctx, runner.DispatchRequest{
		RequestID:    requestID,
		TenantID:     in.TenantID.String(),
		WorkflowID:   workflowID,
		EventType:    in.EventType,
		EventPayload: in.EventPayload,
		ExtraContext: extraContext,
	}); err != nil {
		// The business transaction already succeeded; the record stays
		// Pending and the status resolver will infer TimedOut if no
		// callback ever arrives.
		if s.logger != nil {
			s.logger.Warnf("runner dispatch failed for request %s (event %s): %v", requestID, in.EventType, err)
		}
		if s.audit != nil {
			s.audit.Log(ctx, in.TenantID, "automation.dispatch", "execution", requestID, in.UserID, "FAILURE", "runner unreachable, awaiting timeout inference")
		}
		return requestID, nil
	}

	if s.audit != nil {
		s.audit.Log(ctx, in.TenantID, "automation.dispatch", "execution", requestID, in.UserID, "SUCCESS", in.EventType)
	}
	return requestID, nil
}

func (s *DispatchService) enrich(ctx context.Context, in DispatchInput) map[string]interface{} {
	if s.memory == nil || in.UserID == nil {
		return in.ExtraContext
	}

	enrichCtx, cancel := context.WithTimeout(ctx, enrichmentTimeout)
	defer cancel()

	snapshot, err := s.memory.GetMemoryContext(enrichCtx, in.TenantID, *in.UserID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("memory context enrichment failed for user %s: %v", in.UserID, err)
		}
		return in.ExtraContext
	}
	if snapshot.IsEmpty() {
		return in.ExtraContext
	}

	enriched := make(map[string]interface{}, len(in.ExtraContext)+1)
	for k, v := range in.ExtraContext {
		enriched[k] = v
	}
	enriched["memory_context"] = snapshot
	return enriched
}

func (s *DispatchService) publish(ctx context.Context, rec execution.ExecutionRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewTransitionEnvelope(rec)); err != nil && s.logger != nil {
		s.logger.Warnf("publish transition for %s: %v", rec.RequestID, err)
	}
}
