package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/execution"
	"marketpulse/internal/repository"
	mp_errors "marketpulse/pkg/errors"
)

const testSLAWindow = 30 * time.Minute

func seedRecordAged(t *testing.T, ledger *repository.MockExecutionRepository, tenantID uuid.UUID, age time.Duration) string {
	t.Helper()
	requestID := uuid.NewString()
	rec := execution.NewPendingRecord(requestID, tenantID, "wf-campaign", "CampaignPublished", nil, nil)
	rec.CreatedAt = time.Now().UTC().Add(-age)
	rec.UpdatedAt = rec.CreatedAt
	require.NoError(t, ledger.Create(context.Background(), rec))
	return requestID
}

func TestResolve(t *testing.T) {
	tenantID := uuid.New()

	t.Run("NotFound", func(t *testing.T) {
		svc := NewStatusService(repository.NewMockExecutionRepository(), nil, nil, testSLAWindow, nil)
		_, err := svc.Resolve(context.Background(), tenantID, uuid.NewString())
		assert.ErrorIs(t, err, mp_errors.ErrNotFound)
	})

	t.Run("CrossTenantReadsAsNotFound", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewStatusService(ledger, nil, nil, testSLAWindow, nil)
		requestID := seedRecordAged(t, ledger, tenantID, time.Minute)

		_, err := svc.Resolve(context.Background(), uuid.New(), requestID)
		assert.ErrorIs(t, err, mp_errors.ErrNotFound)
	})

	t.Run("FreshPendingStaysPending", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewStatusService(ledger, nil, nil, testSLAWindow, nil)
		requestID := seedRecordAged(t, ledger, tenantID, time.Minute)

		view, err := svc.Resolve(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusPending, view.Status)
		assert.Nil(t, view.CompletedAt)
	})

	t.Run("StalePendingTimesOutOnRead", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		auditSink := &recordingAudit{}
		pub := &fakePublisher{}
		svc := NewStatusService(ledger, auditSink, pub, testSLAWindow, nil)
		requestID := seedRecordAged(t, ledger, tenantID, time.Hour)

		view, err := svc.Resolve(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusTimedOut, view.Status)
		require.NotNil(t, view.CompletedAt)
		require.NotNil(t, view.ErrorDetail)

		rec, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusTimedOut, rec.Status, "the synthetic transition must be persisted")

		require.Len(t, pub.published(), 1)
		assert.Equal(t, "execution.timed_out", pub.published()[0].EventType)
	})

	t.Run("TimedOutIsStickyAgainstLateCallback", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		statusSvc := NewStatusService(ledger, nil, nil, testSLAWindow, nil)
		reconcileSvc := NewReconcileService(ledger, nil, nil, nil, nil)
		requestID := seedRecordAged(t, ledger, tenantID, time.Hour)

		view, err := statusSvc.Resolve(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		require.Equal(t, execution.StatusTimedOut, view.Status)

		// The legitimate callback arrives moments too late.
		accepted, err := reconcileSvc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
			RequestID: requestID, Status: "Completed",
		})
		require.NoError(t, err)
		assert.True(t, accepted, "late callback accepted as no-op duplicate")

		rec, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusTimedOut, rec.Status, "TimedOut is never overwritten")
	})

	t.Run("StaleProcessingAlsoTimesOut", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewStatusService(ledger, nil, nil, testSLAWindow, nil)
		requestID := seedRecordAged(t, ledger, tenantID, time.Hour)
		_, err := ledger.UpdateStatus(context.Background(), tenantID, requestID, execution.StatusProcessing, nil, nil)
		require.NoError(t, err)

		view, err := svc.Resolve(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusTimedOut, view.Status)
	})

	t.Run("StaleTerminalRecordIsLeftAlone", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewStatusService(ledger, nil, nil, testSLAWindow, nil)
		requestID := seedRecordAged(t, ledger, tenantID, time.Hour)
		_, err := ledger.UpdateStatus(context.Background(), tenantID, requestID, execution.StatusCompleted, nil, nil)
		require.NoError(t, err)

		view, err := svc.Resolve(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusCompleted, view.Status)
	})

	t.Run("TimeoutWriteSurvivesCallerCancellation", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewStatusService(ledger, nil, nil, testSLAWindow, nil)
		requestID := seedRecordAged(t, ledger, tenantID, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// The read side may fail under a cancelled context depending on the
		// store; the housekeeping write path runs detached either way.
		view, err := svc.Resolve(ctx, tenantID, requestID)
		if err == nil {
			assert.Equal(t, execution.StatusTimedOut, view.Status)
		}
	})
}

func TestList(t *testing.T) {
	tenantID := uuid.New()

	ledger := repository.NewMockExecutionRepository()
	svc := NewStatusService(ledger, nil, nil, testSLAWindow, nil)

	first := seedRecordAged(t, ledger, tenantID, time.Minute)
	second := seedRecordAged(t, ledger, tenantID, time.Minute)
	_, err := ledger.UpdateStatus(context.Background(), tenantID, second, execution.StatusCompleted, nil, nil)
	require.NoError(t, err)
	seedRecordAged(t, ledger, uuid.New(), time.Minute)

	t.Run("ScopedToTenant", func(t *testing.T) {
		views, err := svc.List(context.Background(), tenantID, nil, 50)
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})

	t.Run("FilteredByStatus", func(t *testing.T) {
		pending := execution.StatusPending
		views, err := svc.List(context.Background(), tenantID, &pending, 50)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, first, views[0].RequestID)
	})
}
