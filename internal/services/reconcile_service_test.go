package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/execution"
	"marketpulse/internal/repository"
	mp_errors "marketpulse/pkg/errors"
)

func seedPending(t *testing.T, ledger *repository.MockExecutionRepository, tenantID uuid.UUID) string {
	t.Helper()
	requestID := uuid.NewString()
	rec := execution.NewPendingRecord(requestID, tenantID, "wf-campaign", "CampaignPublished", nil, nil)
	require.NoError(t, ledger.Create(context.Background(), rec))
	return requestID
}

func TestReconcile(t *testing.T) {
	tenantID := uuid.New()

	t.Run("TerminalCallbackApplied", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		auditSink := &recordingAudit{}
		pub := &fakePublisher{}
		svc := NewReconcileService(ledger, auditSink, nil, pub, nil)
		requestID := seedPending(t, ledger, tenantID)

		accepted, err := svc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
			RequestID:     requestID,
			Status:        "Completed",
			ResultPayload: json.RawMessage(`{"sent":120}`),
		})
		require.NoError(t, err)
		assert.True(t, accepted)

		rec, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusCompleted, rec.Status)
		assert.JSONEq(t, `{"sent":120}`, string(rec.ResultPayload))
		require.NotNil(t, rec.CompletedAt)

		assert.Equal(t, 1, auditSink.count())
		require.Len(t, pub.published(), 1)
		assert.Equal(t, "execution.completed", pub.published()[0].EventType)
	})

	t.Run("DuplicateTerminalCallbackIsNoOp", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		auditSink := &recordingAudit{}
		svc := NewReconcileService(ledger, auditSink, nil, nil, nil)
		requestID := seedPending(t, ledger, tenantID)

		cb := execution.Callback{RequestID: requestID, Status: "Completed", ResultPayload: json.RawMessage(`{"sent":1}`)}
		accepted, err := svc.Reconcile(context.Background(), tenantID, requestID, cb)
		require.NoError(t, err)
		require.True(t, accepted)

		first, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)

		accepted, err = svc.Reconcile(context.Background(), tenantID, requestID, cb)
		require.NoError(t, err)
		assert.True(t, accepted, "duplicate terminal callback is accepted as a no-op")

		second, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "no observable ledger change on duplicate")
		assert.Equal(t, first.CompletedAt, second.CompletedAt)
		assert.Equal(t, 1, auditSink.count(), "exactly one transition audited")
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewReconcileService(ledger, nil, nil, nil, nil)
		requestID := seedPending(t, ledger, tenantID)

		otherTenant := uuid.New()
		accepted, err := svc.Reconcile(context.Background(), otherTenant, requestID, execution.Callback{
			RequestID: requestID,
			Status:    "Completed",
		})
		assert.ErrorIs(t, err, mp_errors.ErrNotFound)
		assert.False(t, accepted)

		rec, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusPending, rec.Status, "owner's record must be untouched")
	})

	t.Run("EmptyRequestIDRejected", func(t *testing.T) {
		svc := NewReconcileService(repository.NewMockExecutionRepository(), nil, nil, nil, nil)
		accepted, err := svc.Reconcile(context.Background(), tenantID, "", execution.Callback{})
		assert.ErrorIs(t, err, mp_errors.ErrInvalidInput)
		assert.False(t, accepted)
	})

	t.Run("PayloadURLMismatchRejected", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewReconcileService(ledger, nil, nil, nil, nil)
		requestID := seedPending(t, ledger, tenantID)

		accepted, err := svc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
			RequestID: "someone-elses-id",
			Status:    "Completed",
		})
		assert.ErrorIs(t, err, mp_errors.ErrInvalidInput)
		assert.False(t, accepted)

		rec, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusPending, rec.Status, "rejection must not mutate the record")
	})

	t.Run("UnknownStatusRejected", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewReconcileService(ledger, nil, nil, nil, nil)
		requestID := seedPending(t, ledger, tenantID)

		accepted, err := svc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
			RequestID: requestID,
			Status:    "exploded",
		})
		assert.ErrorIs(t, err, mp_errors.ErrInvalidInput)
		assert.False(t, accepted)
	})

	t.Run("NonTerminalStatusCoercedToProcessing", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewReconcileService(ledger, nil, nil, nil, nil)
		requestID := seedPending(t, ledger, tenantID)

		accepted, err := svc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
			RequestID:     requestID,
			Status:        "running",
			ResultPayload: json.RawMessage(`{"partial":true}`),
		})
		require.NoError(t, err)
		assert.True(t, accepted)

		rec, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusProcessing, rec.Status)
		assert.Nil(t, rec.CompletedAt, "non-terminal transition must not stamp completedAt")
		assert.Nil(t, rec.ResultPayload, "result payload is stored only on terminal transitions")
	})

	t.Run("ProcessingAfterCompletedDoesNotRegress", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		svc := NewReconcileService(ledger, nil, nil, nil, nil)
		requestID := seedPending(t, ledger, tenantID)

		accepted, err := svc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
			RequestID: requestID, Status: "Completed",
		})
		require.NoError(t, err)
		require.True(t, accepted)

		accepted, err = svc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
			RequestID: requestID, Status: "Processing",
		})
		require.NoError(t, err)
		assert.True(t, accepted, "out-of-order non-terminal callback accepted as duplicate")

		rec, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusCompleted, rec.Status, "terminal states are sticky")
	})

	t.Run("ConcurrentDuplicatesProduceOneTransition", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		auditSink := &recordingAudit{}
		svc := NewReconcileService(ledger, auditSink, nil, nil, nil)
		requestID := seedPending(t, ledger, tenantID)

		const n = 16
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				accepted, err := svc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
					RequestID: requestID, Status: "Failed", ErrorDetail: "upstream 500",
				})
				assert.NoError(t, err)
				assert.True(t, accepted)
			}()
		}
		wg.Wait()

		rec, err := ledger.GetByRequestID(context.Background(), tenantID, requestID)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusFailed, rec.Status)
		require.NotNil(t, rec.ErrorDetail)
		assert.Equal(t, "upstream 500", *rec.ErrorDetail)
		assert.Equal(t, 1, auditSink.count(), "exactly one effective transition under concurrent duplicates")
	})

	t.Run("TerminalCallbackIsArchived", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		archive := &fakeArchive{}
		svc := NewReconcileService(ledger, nil, archive, nil, nil)
		requestID := seedPending(t, ledger, tenantID)

		_, err := svc.Reconcile(context.Background(), tenantID, requestID, execution.Callback{
			RequestID: requestID, Status: "Completed",
		})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			keys := archive.archived()
			return len(keys) == 1 && keys[0] == tenantID.String()+"/"+requestID
		}, time.Second, 10*time.Millisecond)
	})
}
