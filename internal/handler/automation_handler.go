package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketpulse/internal/domain/execution"
	"marketpulse/internal/services"
	"marketpulse/internal/transport/httpdto"
	mp_errors "marketpulse/pkg/errors"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

type AutomationHandler struct {
	dispatch *services.DispatchService
	status   *services.StatusService
}

func NewAutomationHandler(dispatch *services.DispatchService, status *services.StatusService) *AutomationHandler {
	return &AutomationHandler{dispatch: dispatch, status: status}
}

func (h *AutomationHandler) Dispatch(c *gin.Context) {
	var req httpdto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	actor, ok := services.ActorFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	userID := actor.UserID
	requestID, err := h.dispatch.Dispatch(c.Request.Context(), services.DispatchInput{
		TenantID:        actor.TenantID,
		EventType:       req.EventType,
		EventPayload:    req.EventPayload,
		UserID:          &userID,
		RelatedEntityID: req.RelatedEntityID,
		ExtraContext:    req.ExtraContext,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(httpdto.DispatchResponse{RequestID: requestID}))
}

func (h *AutomationHandler) Get(c *gin.Context) {
	actor, ok := services.ActorFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	view, err := h.status.Resolve(c.Request.Context(), actor.TenantID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *AutomationHandler) List(c *gin.Context) {
	actor, ok := services.ActorFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var statusFilter *execution.Status
	if raw := c.Query("status"); raw != "" {
		status := execution.Status(strings.ToUpper(raw))
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid status", "INVALID_REQUEST"))
			return
		}
		statusFilter = &status
	}

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid limit", "INVALID_REQUEST"))
		return
	}

	views, err := h.status.List(c.Request.Context(), actor.TenantID, statusFilter, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"executions": views}))
}

func parseLimit(value string) (int, error) {
	if value == "" {
		return defaultListLimit, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return 0, errors.New("invalid limit")
	}
	return parsed, nil
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mp_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
	case errors.Is(err, mp_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	case errors.Is(err, mp_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	case errors.Is(err, mp_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
	}
}
