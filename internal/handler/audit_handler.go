package handler

import (
	"net/http"

	"marketpulse/internal/services"
	"marketpulse/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	service *services.AuditService
}

func NewAuditHandler(service *services.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(c *gin.Context) {
	actor, ok := services.ActorFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid limit", "INVALID_REQUEST"))
		return
	}

	entries, err := h.service.ListByTenant(c.Request.Context(), actor.TenantID, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	items := make([]httpdto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := httpdto.AuditEntryResponse{
			ID:         e.ID.String(),
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Result:     e.Result,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt,
		}
		if e.ActorID != nil {
			item.ActorID = e.ActorID.String()
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"entries": items}))
}
