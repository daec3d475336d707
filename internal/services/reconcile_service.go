package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/domain/execution"
	"marketpulse/internal/events"
	"marketpulse/internal/repository"
	mp_errors "marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// ReconcileService correlates asynchronous runner callbacks against the
// execution ledger. It tolerates duplicate and out-of-order delivery: the
// ledger's conditional update is the idempotency boundary, so invoking
// Reconcile N times with the same terminal callback yields exactly one
// state transition.
type ReconcileService struct {
	ledger    repository.ExecutionRepository
	audit     AuditSink
	archive   ArchiveStore
	publisher events.Publisher
	logger    *logger.Logger
}

func NewReconcileService(
	ledger repository.ExecutionRepository,
	auditSink AuditSink,
	archive ArchiveStore,
	publisher events.Publisher,
	l *logger.Logger,
) *ReconcileService {
	return &ReconcileService{
		ledger:    ledger,
		audit:     auditSink,
		archive:   archive,
		publisher: publisher,
		logger:    l,
	}
}

// Reconcile validates the callback and applies its transition. accepted is
// true when the callback was applied or recognized as a duplicate of an
// already-final record. Rejections perform no mutation at all.
func (s *ReconcileService) Reconcile(ctx context.Context, tenantID uuid.UUID, claimedRequestID string, cb execution.Callback) (bool, error) {
	if claimedRequestID == "" {
		return false, fmt.Errorf("%w: request id is required", mp_errors.ErrInvalidInput)
	}
	// Transport-level integrity check: the id in the payload must match the
	// one the URL claims, or someone stitched a callback together wrong.
	if cb.RequestID != claimedRequestID {
		return false, fmt.Errorf("%w: callback request id %q does not match %q", mp_errors.ErrInvalidInput, cb.RequestID, claimedRequestID)
	}

	status, err := execution.ParseCallbackStatus(cb.Status)
	if err != nil {
		return false, fmt.Errorf("%w: unknown callback status %q", mp_errors.ErrInvalidInput, cb.Status)
	}

	// Result and error detail are stored only on terminal transitions.
	var result json.RawMessage
	var errDetail *string
	if status.IsTerminal() {
		result = cb.ResultPayload
		if cb.ErrorDetail != "" {
			detail := cb.ErrorDetail
			errDetail = &detail
		}
	}

	rec, err := s.ledger.UpdateStatus(ctx, tenantID, claimedRequestID, status, result, errDetail)
	switch {
	case errors.Is(err, mp_errors.ErrAlreadyFinalized):
		// Duplicate (or late) delivery of a finalized request. Accepted as a
		// no-op so at-least-once webhook senders stop retrying. A late
		// legitimate result after a TimedOut transition lands here too; it
		// stays dropped, logged for operational visibility.
		if s.logger != nil {
			s.logger.Warnf("callback for finalized request %s ignored (stored=%s, incoming=%s)", claimedRequestID, rec.Status, status)
		}
		return true, nil
	case errors.Is(err, mp_errors.ErrNotFound):
		// Unknown or cross-tenant request id. Logged and dropped; retrying
		// is the runner's responsibility, not ours.
		if s.logger != nil {
			s.logger.Warnf("callback for unknown request %s (tenant %s) dropped", claimedRequestID, tenantID)
		}
		return false, mp_errors.ErrNotFound
	case err != nil:
		return false, fmt.Errorf("update execution status: %w", err)
	}

	s.publish(ctx, rec)

	if status.IsTerminal() {
		if s.audit != nil {
			s.audit.Log(ctx, tenantID, "automation.callback", "execution", claimedRequestID, nil, string(status), cb.ErrorDetail)
		}
		s.archiveCallback(ctx, rec, cb)
	}
	return true, nil
}

// archiveCallback retains the raw terminal payload in object storage on a
// detached goroutine. The ledger transition is already committed; archive
// failure is logged and discarded.
func (s *ReconcileService) archiveCallback(ctx context.Context, rec execution.ExecutionRecord, cb execution.Callback) {
	if s.archive == nil {
		return
	}
	payload, err := json.Marshal(cb)
	if err != nil {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	go func() {
		defer cancel()
		if err := s.archive.ArchiveCallback(archiveCtx, rec.TenantID.String(), rec.RequestID, payload); err != nil && s.logger != nil {
			s.logger.Warnf("archive callback for %s: %v", rec.RequestID, err)
		}
	}()
}

func (s *ReconcileService) publish(ctx context.Context, rec execution.ExecutionRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewTransitionEnvelope(rec)); err != nil && s.logger != nil {
		s.logger.Warnf("publish transition for %s: %v", rec.RequestID, err)
	}
}
