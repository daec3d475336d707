package handler

import (
	"errors"
	"net/http"

	"marketpulse/internal/domain/execution"
	"marketpulse/internal/services"
	"marketpulse/internal/transport/httpdto"
	mp_errors "marketpulse/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WebhookHandler struct {
	reconcile *services.ReconcileService
}

func NewWebhookHandler(reconcile *services.ReconcileService) *WebhookHandler {
	return &WebhookHandler{reconcile: reconcile}
}

// Callback is the public endpoint the runner delivers execution results to.
// Delivery is at-least-once; anything already finalized comes back 200 so the
// sender stops retrying.
func (h *WebhookHandler) Callback(c *gin.Context) {
	var req httpdto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid tenant_id", "INVALID_REQUEST"))
		return
	}

	accepted, err := h.reconcile.Reconcile(c.Request.Context(), tenantID, c.Param("requestId"), execution.Callback{
		RequestID:     req.RequestID,
		Status:        req.Status,
		ResultPayload: req.ResultPayload,
		ErrorDetail:   req.ErrorDetail,
	})
	if err != nil {
		switch {
		case errors.Is(err, mp_errors.ErrNotFound):
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("unknown request id", "NOT_FOUND"))
		case errors.Is(err, mp_errors.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
		default:
			c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
		}
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CallbackResponse{Accepted: accepted}))
}
