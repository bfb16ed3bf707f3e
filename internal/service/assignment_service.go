package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type assignmentStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.ManualAssignment) error
	GetByID(ctx context.Context, id string) (*models.ManualAssignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.ManualAssignment, error)
}

// AssignmentService executes coordinator overrides. Every assignment is written
// together with exactly one audit entry.
type AssignmentService struct {
	engineDeps
	store       assignmentStore
	audit       auditWriter
	suggestions suggestionStore
	conflicts   conflictStore
	tx          txRunner
}

// NewAssignmentService constructs the override workflow.
func NewAssignmentService(store assignmentStore, audit auditWriter, suggestions suggestionStore, conflicts conflictStore, tx txRunner, validate *validator.Validate, logger *zap.Logger, opts ...Option) *AssignmentService {
	return &AssignmentService{
		engineDeps:  newEngineDeps(validate, logger, opts),
		store:       store,
		audit:       audit,
		suggestions: suggestions,
		conflicts:   conflicts,
		tx:          tx,
	}
}

// Create authorizes, validates and checks the origin before writing anything. The
// assignment, its audit entry and the origin update commit together or not at all.
func (s *AssignmentService) Create(ctx context.Context, req dto.CreateManualAssignmentRequest, actor models.Actor) (*models.ManualAssignment, error) {
	if err := s.gate.Authorize(ActionCreateManualAssignment, actor.Role); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	var suggestion *models.MatchingSuggestion
	if req.OriginSuggestionID != nil {
		release, err := s.lockRecord(ctx, "suggestion", *req.OriginSuggestionID)
		if err != nil {
			return nil, err
		}
		defer release()
		suggestion, err = s.suggestions.GetByID(ctx, nil, *req.OriginSuggestionID)
		if err != nil {
			return nil, staleOrigin(err, "failed to load origin suggestion")
		}
		if suggestion.Status.IsTerminal() {
			return nil, appErrors.Clone(appErrors.ErrConflict, "")
		}
	}

	var conflictReq *models.ConflictRequest
	if req.OriginConflictRequestID != nil {
		release, err := s.lockRecord(ctx, "conflict-request", *req.OriginConflictRequestID)
		if err != nil {
			return nil, err
		}
		defer release()
		conflictReq, err = s.conflicts.GetRequest(ctx, nil, *req.OriginConflictRequestID)
		if err != nil {
			return nil, staleOrigin(err, "failed to load origin conflict request")
		}
		if conflictReq.Status != models.ConflictStatusOpen {
			return nil, appErrors.Clone(appErrors.ErrConflict, "")
		}
	}

	now := s.now()
	assignment := &models.ManualAssignment{
		StudentID:               req.StudentID,
		TutorID:                 req.TutorID,
		CoordinatorID:           actor.ID,
		Reason:                  req.Reason,
		Course:                  req.Course,
		Slot:                    req.Slot,
		OriginSuggestionID:      req.OriginSuggestionID,
		OriginConflictRequestID: req.OriginConflictRequestID,
		CreatedAt:               now,
	}
	err := s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.store.Create(ctx, exec, assignment); err != nil {
			return err
		}
		if err := s.audit.Create(ctx, exec, &models.AuditLog{
			ActorID:      actor.ID,
			ActorRole:    canonicalRole(actor.Role),
			Action:       models.AuditActionManualAssignment,
			ResourceType: models.AuditResourceAssignment,
			ResourceID:   assignment.ID,
			Details:      auditDetails(assignmentDetails(assignment)),
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		if suggestion != nil {
			if err := s.suggestions.UpdateStatus(ctx, exec, suggestion.ID, suggestion.Version, models.SuggestionStatusAssigned, now); err != nil {
				return err
			}
		}
		if conflictReq != nil {
			resolution := "Manual assignment " + assignment.ID
			if err := s.conflicts.ResolveRequest(ctx, exec, conflictReq.ID, conflictReq.Version, resolution, actor.ID, now); err != nil {
				return err
			}
			if _, err := s.conflicts.CloseIfComplete(ctx, exec, conflictReq.ConflictID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "origin not found", "failed to create manual assignment")
	}

	s.metrics.RecordAssignmentCreated()
	s.logger.Info("manual assignment created",
		zap.String("assignment_id", assignment.ID),
		zap.String("student_id", assignment.StudentID),
		zap.String("tutor_id", assignment.TutorID),
		zap.String("coordinator_id", assignment.CoordinatorID),
	)
	return assignment, nil
}

// Get returns one assignment.
func (s *AssignmentService) Get(ctx context.Context, id string, actor models.Actor) (*models.ManualAssignment, error) {
	if err := s.gate.Authorize(ActionReadAssignments, actor.Role); err != nil {
		return nil, err
	}
	assignment, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storeError(err, "assignment not found", "failed to load assignment")
	}
	return assignment, nil
}

// staleOrigin treats an unknown origin id like an already handled one.
func staleOrigin(err error, internal string) error {
	mapped := storeError(err, "", internal)
	if appErrors.IsKind(mapped, appErrors.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrConflict, "")
	}
	return mapped
}

func assignmentDetails(assignment *models.ManualAssignment) map[string]interface{} {
	details := map[string]interface{}{
		"tutorId":   assignment.TutorID,
		"studentId": assignment.StudentID,
	}
	if assignment.Course != nil {
		details["course"] = *assignment.Course
	}
	if assignment.Slot != nil {
		details["slot"] = *assignment.Slot
	}
	if assignment.OriginSuggestionID != nil {
		details["originSuggestionId"] = *assignment.OriginSuggestionID
	}
	if assignment.OriginConflictRequestID != nil {
		details["originConflictRequestId"] = *assignment.OriginConflictRequestID
	}
	return details
}
