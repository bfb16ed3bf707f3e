package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/pkg/response"
)

type conflictService interface {
	Scan(ctx context.Context, snapshot []models.Booking, actor models.Actor) ([]models.Conflict, error)
	ScanStored(ctx context.Context, actor models.Actor) ([]models.Conflict, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.Conflict, error)
	ResolveRequest(ctx context.Context, requestID, resolution string, actor models.Actor) (*models.Conflict, error)
}

type conflictQuery interface {
	ListConflicts(ctx context.Context, filter models.ConflictFilter, actor models.Actor) ([]models.Conflict, error)
}

// ConflictHandler exposes scheduling conflict endpoints.
type ConflictHandler struct {
	service conflictService
	query   conflictQuery
}

// NewConflictHandler builds a new handler.
func NewConflictHandler(service conflictService, query conflictQuery) *ConflictHandler {
	return &ConflictHandler{service: service, query: query}
}

// List godoc
// @Summary List scheduling conflicts
// @Tags Conflicts
// @Produce json
// @Param department query string false "Department"
// @Param resource query string false "Tutor, room or student id"
// @Param type query string false "TUTOR_DOUBLE_BOOKING, ROOM_CONFLICT or STUDENT_QUOTA"
// @Param status query string false "OPEN or RESOLVED"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ConflictFilter{
		Department: strings.TrimSpace(c.Query("department")),
		Resource:   strings.TrimSpace(c.Query("resource")),
		Type:       models.ConflictType(strings.ToUpper(strings.TrimSpace(c.Query("type")))),
		Status:     models.ConflictStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Limit:      limit,
		Offset:     offset,
	}
	items, err := h.query.ListConflicts(c.Request.Context(), filter, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &response.Pagination{Limit: limit, Offset: offset, Count: len(items)})
}

// Get godoc
// @Summary Get a conflict with its requests
// @Tags Conflicts
// @Produce json
// @Param id path string true "Conflict ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /conflicts/{id} [get]
func (h *ConflictHandler) Get(c *gin.Context) {
	conflict, err := h.service.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflict, nil)
}

// Scan godoc
// @Summary Detect conflicts in a booking snapshot
// @Description Scans the bookings in the body, or the stored bookings when the body is empty.
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body dto.ScanConflictsRequest false "Booking snapshot"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /conflicts/scan [post]
func (h *ConflictHandler) Scan(c *gin.Context) {
	var req dto.ScanConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, invalidBody(err))
		return
	}

	actor := actorFromContext(c)
	var (
		conflicts []models.Conflict
		err       error
	)
	if req.Bookings == nil {
		conflicts, err = h.service.ScanStored(c.Request.Context(), actor)
	} else {
		conflicts, err = h.service.Scan(c.Request.Context(), req.Bookings, actor)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// ResolveRequest godoc
// @Summary Resolve one conflict request
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param id path string true "Conflict request ID"
// @Param payload body dto.ResolveConflictRequestInput false "Resolution"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /conflict-requests/{id}/resolve [post]
func (h *ConflictHandler) ResolveRequest(c *gin.Context) {
	var req dto.ResolveConflictRequestInput
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, invalidBody(err))
		return
	}
	conflict, err := h.service.ResolveRequest(c.Request.Context(), c.Param("id"), req.Resolution, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflict, nil)
}
