package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/pkg/response"
)

type auditQuery interface {
	ListAuditLogs(ctx context.Context, filter models.AuditFilter, actor models.Actor) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	query auditQuery
}

// NewAuditHandler builds a new handler.
func NewAuditHandler(query auditQuery) *AuditHandler {
	return &AuditHandler{query: query}
}

// List godoc
// @Summary List audit entries, newest first
// @Tags Audit
// @Produce json
// @Param actorId query string false "Actor ID"
// @Param eventType query string false "Action substring"
// @Param resource query string false "Resource type or id substring"
// @Param since query string false "RFC3339 lower bound"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	since, err := timeQuery(c, "since")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.AuditFilter{
		ActorID:  strings.TrimSpace(c.Query("actorId")),
		Action:   strings.TrimSpace(c.Query("eventType")),
		Resource: strings.TrimSpace(c.Query("resource")),
		Since:    since,
		Limit:    limit,
		Offset:   offset,
	}
	items, err := h.query.ListAuditLogs(c.Request.Context(), filter, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &response.Pagination{Limit: limit, Offset: offset, Count: len(items)})
}
