package services

import (
	"context"
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

const timedOutDetail = "no callback received within the SLA window"

// StatusService answers "what is the state of request R" queries with lazy
// timeout inference: staleness is detected on read, never by a background
// sweep. A request whose callback is lost or delayed past the SLA window
// permanently reads as TimedOut once any caller polls it after the window,
// even if a legitimate callback arrives moments later.
type StatusService struct {
	ledger    repository.ExecutionRepository
	audit     AuditSink
	publisher events.Publisher
	slaWindow time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewStatusService(
	ledger repository.ExecutionRepository,
	auditSink AuditSink,
	publisher events.Publisher,
	slaWindow time.Duration,
	l *logger.Logger,
) *StatusService {
	return &StatusService{
		ledger:    ledger,
		audit:     auditSink,
		publisher: publisher,
		slaWindow: slaWindow,
		logger:    l,
		now:       time.Now,
	}
}

// Resolve returns the read-only status view for (tenantID, requestID).
func (s *StatusService) Resolve(ctx context.Context, tenantID uuid.UUID, requestID string) (execution.StatusView, error) {
	if requestID == "" {
		return execution.StatusView{}, fmt.Errorf("%w: request id is required", mp_errors.ErrInvalidInput)
	}

	rec, err := s.ledger.GetByRequestID(ctx, tenantID, requestID)
	if err != nil {
		return execution.StatusView{}, err
	}

	if !rec.Status.IsTerminal() && s.slaWindow > 0 && s.now().Sub(rec.CreatedAt) > s.slaWindow {
		rec, err = s.applyTimeout(ctx, tenantID, requestID)
		if err != nil {
			return execution.StatusView{}, err
		}
	}

	return rec.View(), nil
}

// applyTimeout persists the synthetic TimedOut transition. The write is
// housekeeping, not a response to the caller, so it runs on a context
// detached from the caller's cancellation.
func (s *StatusService) applyTimeout(ctx context.Context, tenantID uuid.UUID, requestID string) (execution.ExecutionRecord, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	detail := timedOutDetail
	rec, err := s.ledger.UpdateStatus(writeCtx, tenantID, requestID, execution.StatusTimedOut, nil, &detail)
	if errors.Is(err, mp_errors.ErrAlreadyFinalized) {
		// A callback raced the timeout write and won; its result stands.
		return rec, nil
	}
	if err != nil {
		return execution.ExecutionRecord{}, fmt.Errorf("apply timeout: %w", err)
	}

	if s.logger != nil {
		s.logger.Warnf("request %s timed out after %s without a callback", requestID, s.slaWindow)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(writeCtx, events.NewTransitionEnvelope(rec)); err != nil && s.logger != nil {
			s.logger.Warnf("publish transition for %s: %v", rec.RequestID, err)
		}
	}
	if s.audit != nil {
		s.audit.Log(writeCtx, tenantID, "automation.timeout", "execution", requestID, nil, string(execution.StatusTimedOut), timedOutDetail)
	}
	return rec, nil
}

// List returns recent executions for a tenant, optionally filtered by status.
func (s *StatusService) List(ctx context.Context, tenantID uuid.UUID, status *execution.Status, limit int) ([]execution.StatusView, error) {
	records, err := s.ledger.ListByTenant(ctx, tenantID, status, limit)
	if err != nil {
		return nil, err
	}
	views := make([]execution.StatusView, 0, len(records))
	for _, rec := range records {
		views = append(views, rec.View())
	}
	return views, nil
}
