package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/execution"
	"marketpulse/internal/repository"
	"marketpulse/internal/runner"
	"marketpulse/internal/services"
)

type stubRunner struct {
	mu       sync.Mutex
	requests []runner.DispatchRequest
}

func (s *stubRunner) TriggerWorkflow(_ context.Context, req runner.DispatchRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return nil
}

func (s *stubRunner) HealthCheck(context.Context) error { return nil }

func actorMiddleware(userID, tenantID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(services.WithActor(c.Request.Context(), userID, tenantID))
		c.Next()
	}
}

func newAutomationRouter(ledger *repository.MockExecutionRepository, rc services.RunnerClient, userID, tenantID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	workflowMap := map[string]string{"CampaignPublished": "wf-campaign"}
	dispatch := services.NewDispatchService(ledger, rc, nil, nil, nil, nil, workflowMap, nil)
	status := services.NewStatusService(ledger, nil, nil, 30*time.Minute, nil)
	h := NewAutomationHandler(dispatch, status)

	r := gin.New()
	group := r.Group("/v1/automation", actorMiddleware(userID, tenantID))
	group.POST("/dispatch", h.Dispatch)
	group.GET("/executions", h.List)
	group.GET("/executions/:id", h.Get)
	return r
}

func TestAutomationDispatch(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()

	t.Run("ReturnsRequestID", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		rc := &stubRunner{}
		r := newAutomationRouter(ledger, rc, userID, tenantID)

		body := `{"event_type":"CampaignPublished","event_payload":{"campaign_id":"c-1"}}`
		req := httptest.NewRequest(http.MethodPost, "/v1/automation/dispatch", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), "request_id")
		require.Len(t, rc.requests, 1)
		assert.Equal(t, tenantID.String(), rc.requests[0].TenantID)
	})

	t.Run("UnknownEventType", func(t *testing.T) {
		r := newAutomationRouter(repository.NewMockExecutionRepository(), &stubRunner{}, userID, tenantID)

		body := `{"event_type":"NobodyMappedThis"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/automation/dispatch", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingEventType", func(t *testing.T) {
		r := newAutomationRouter(repository.NewMockExecutionRepository(), &stubRunner{}, userID, tenantID)

		req := httptest.NewRequest(http.MethodPost, "/v1/automation/dispatch", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAutomationStatus(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()

	t.Run("GetExisting", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		r := newAutomationRouter(ledger, &stubRunner{}, userID, tenantID)

		requestID := uuid.NewString()
		rec := execution.NewPendingRecord(requestID, tenantID, "wf-campaign", "CampaignPublished", nil, nil)
		require.NoError(t, ledger.Create(context.Background(), rec))

		req := httptest.NewRequest(http.MethodGet, "/v1/automation/executions/"+requestID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), requestID)
		assert.Contains(t, w.Body.String(), string(execution.StatusPending))
	})

	t.Run("GetUnknown", func(t *testing.T) {
		r := newAutomationRouter(repository.NewMockExecutionRepository(), &stubRunner{}, userID, tenantID)

		req := httptest.NewRequest(http.MethodGet, "/v1/automation/executions/"+uuid.NewString(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ListFiltersByStatus", func(t *testing.T) {
		ledger := repository.NewMockExecutionRepository()
		r := newAutomationRouter(ledger, &stubRunner{}, userID, tenantID)

		pending := execution.NewPendingRecord(uuid.NewString(), tenantID, "wf-campaign", "CampaignPublished", nil, nil)
		require.NoError(t, ledger.Create(context.Background(), pending))
		done := execution.NewPendingRecord(uuid.NewString(), tenantID, "wf-campaign", "CampaignPublished", nil, nil)
		require.NoError(t, ledger.Create(context.Background(), done))
		_, err := ledger.UpdateStatus(context.Background(), tenantID, done.RequestID, execution.StatusCompleted, nil, nil)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/automation/executions?status=completed", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), done.RequestID)
		assert.NotContains(t, w.Body.String(), pending.RequestID)
	})

	t.Run("ListRejectsBogusStatus", func(t *testing.T) {
		r := newAutomationRouter(repository.NewMockExecutionRepository(), &stubRunner{}, userID, tenantID)

		req := httptest.NewRequest(http.MethodGet, "/v1/automation/executions?status=bogus", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
