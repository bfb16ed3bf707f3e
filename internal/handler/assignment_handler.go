package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/pkg/response"
)

type assignmentService interface {
	Create(ctx context.Context, req dto.CreateManualAssignmentRequest, actor models.Actor) (*models.ManualAssignment, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.ManualAssignment, error)
}

type assignmentQuery interface {
	ListAssignments(ctx context.Context, filter models.AssignmentFilter, actor models.Actor) ([]models.ManualAssignment, error)
}

// AssignmentHandler exposes manual assignment endpoints.
type AssignmentHandler struct {
	service assignmentService
	query   assignmentQuery
}

// NewAssignmentHandler builds a new handler.
func NewAssignmentHandler(service assignmentService, query assignmentQuery) *AssignmentHandler {
	return &AssignmentHandler{service: service, query: query}
}

// Create godoc
// @Summary Create a manual tutor assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.CreateManualAssignmentRequest true "Override payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req dto.CreateManualAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	assignment, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// List godoc
// @Summary List manual assignments
// @Tags Assignments
// @Produce json
// @Param studentId query string false "Student ID"
// @Param tutorId query string false "Tutor ID"
// @Param coordinatorId query string false "Coordinator ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.AssignmentFilter{
		StudentID:     strings.TrimSpace(c.Query("studentId")),
		TutorID:       strings.TrimSpace(c.Query("tutorId")),
		CoordinatorID: strings.TrimSpace(c.Query("coordinatorId")),
		Limit:         limit,
		Offset:        offset,
	}
	items, err := h.query.ListAssignments(c.Request.Context(), filter, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &response.Pagination{Limit: limit, Offset: offset, Count: len(items)})
}

// Get godoc
// @Summary Get a manual assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.service.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
