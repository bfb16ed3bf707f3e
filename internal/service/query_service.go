package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type suggestionLister interface {
	List(ctx context.Context, filter models.SuggestionFilter) ([]models.MatchingSuggestion, error)
}

type conflictLister interface {
	List(ctx context.Context, filter models.ConflictFilter) ([]models.Conflict, error)
}

type assignmentLister interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.ManualAssignment, error)
}

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// QueryService serves read-only dashboard listings. Empty results are empty slices.
type QueryService struct {
	gate        authorizer
	suggestions suggestionLister
	conflicts   conflictLister
	assignments assignmentLister
	audit       auditLister
	logger      *zap.Logger
}

// NewQueryService constructs the façade.
func NewQueryService(suggestions suggestionLister, conflicts conflictLister, assignments assignmentLister, audit auditLister, logger *zap.Logger, opts ...Option) *QueryService {
	deps := newEngineDeps(nil, logger, opts)
	return &QueryService{
		gate:        deps.gate,
		suggestions: suggestions,
		conflicts:   conflicts,
		assignments: assignments,
		audit:       audit,
		logger:      deps.logger,
	}
}

// ListSuggestions filters by status, student and course.
func (s *QueryService) ListSuggestions(ctx context.Context, filter models.SuggestionFilter, actor models.Actor) ([]models.MatchingSuggestion, error) {
	if err := s.gate.Authorize(ActionReadSuggestions, actor.Role); err != nil {
		return nil, err
	}
	items, err := s.suggestions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list suggestions")
	}
	if items == nil {
		items = []models.MatchingSuggestion{}
	}
	return items, nil
}

// ListConflicts filters by department, resource, type and status.
func (s *QueryService) ListConflicts(ctx context.Context, filter models.ConflictFilter, actor models.Actor) ([]models.Conflict, error) {
	if err := s.gate.Authorize(ActionReadConflicts, actor.Role); err != nil {
		return nil, err
	}
	items, err := s.conflicts.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list conflicts")
	}
	if items == nil {
		items = []models.Conflict{}
	}
	return items, nil
}

// ListAssignments filters by student, tutor and coordinator.
func (s *QueryService) ListAssignments(ctx context.Context, filter models.AssignmentFilter, actor models.Actor) ([]models.ManualAssignment, error) {
	if err := s.gate.Authorize(ActionReadAssignments, actor.Role); err != nil {
		return nil, err
	}
	items, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assignments")
	}
	if items == nil {
		items = []models.ManualAssignment{}
	}
	return items, nil
}

// ListAuditLogs requires ReadAuditLog.
func (s *QueryService) ListAuditLogs(ctx context.Context, filter models.AuditFilter, actor models.Actor) ([]models.AuditLog, error) {
	if err := s.gate.Authorize(ActionReadAuditLog, actor.Role); err != nil {
		return nil, err
	}
	items, err := s.audit.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list audit logs")
	}
	if items == nil {
		items = []models.AuditLog{}
	}
	s.logger.Debug("audit log listed", zap.String("actor_id", actor.ID), zap.Int("count", len(items)))
	return items, nil
}
