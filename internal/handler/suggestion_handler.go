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

type suggestionService interface {
	Generate(ctx context.Context, req dto.GenerateSuggestionRequest, actor models.Actor) (*models.MatchingSuggestion, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.MatchingSuggestion, error)
	Transition(ctx context.Context, id, status string, actor models.Actor) (*models.MatchingSuggestion, error)
}

type suggestionQuery interface {
	ListSuggestions(ctx context.Context, filter models.SuggestionFilter, actor models.Actor) ([]models.MatchingSuggestion, error)
}

// SuggestionHandler exposes matching suggestion endpoints.
type SuggestionHandler struct {
	service suggestionService
	query   suggestionQuery
}

// NewSuggestionHandler builds a new handler.
func NewSuggestionHandler(service suggestionService, query suggestionQuery) *SuggestionHandler {
	return &SuggestionHandler{service: service, query: query}
}

// List godoc
// @Summary List matching suggestions
// @Tags Matching
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param studentId query string false "Student ID"
// @Param course query string false "Course code"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /matching-suggestions [get]
func (h *SuggestionHandler) List(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.SuggestionFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		Course:    strings.TrimSpace(c.Query("course")),
		Limit:     limit,
		Offset:    offset,
	}
	for _, status := range strings.Split(c.Query("status"), ",") {
		if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
			filter.Status = append(filter.Status, models.SuggestionStatus(status))
		}
	}

	items, err := h.query.ListSuggestions(c.Request.Context(), filter, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &response.Pagination{Limit: limit, Offset: offset, Count: len(items)})
}

// Generate godoc
// @Summary Generate a ranked tutor suggestion
// @Tags Matching
// @Accept json
// @Produce json
// @Param payload body dto.GenerateSuggestionRequest true "Student request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /matching-suggestions [post]
func (h *SuggestionHandler) Generate(c *gin.Context) {
	var req dto.GenerateSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	suggestion, err := h.service.Generate(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, suggestion)
}

// Get godoc
// @Summary Get a matching suggestion
// @Tags Matching
// @Produce json
// @Param id path string true "Suggestion ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /matching-suggestions/{id} [get]
func (h *SuggestionHandler) Get(c *gin.Context) {
	suggestion, err := h.service.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}

// Transition godoc
// @Summary Change a suggestion status
// @Tags Matching
// @Accept json
// @Produce json
// @Param id path string true "Suggestion ID"
// @Param payload body dto.TransitionSuggestionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matching-suggestions/{id} [patch]
func (h *SuggestionHandler) Transition(c *gin.Context) {
	var req dto.TransitionSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	suggestion, err := h.service.Transition(c.Request.Context(), c.Param("id"), req.Status, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}
