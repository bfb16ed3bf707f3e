package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type suggestionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, suggestion *models.MatchingSuggestion) error
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.MatchingSuggestion, error)
	List(ctx context.Context, filter models.SuggestionFilter) ([]models.MatchingSuggestion, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, expectedVersion int64, status models.SuggestionStatus, at time.Time) error
}

type tutorDirectory interface {
	ListTutors(ctx context.Context) ([]models.TutorCandidate, error)
}

// SuggestionService creates ranked suggestions and drives their lifecycle.
type SuggestionService struct {
	engineDeps
	store     suggestionStore
	audit     auditWriter
	directory tutorDirectory
	tx        txRunner
	scorer    *MatchScorer
}

// NewSuggestionService constructs the lifecycle manager.
func NewSuggestionService(store suggestionStore, audit auditWriter, directory tutorDirectory, tx txRunner, scorer *MatchScorer, validate *validator.Validate, logger *zap.Logger, opts ...Option) *SuggestionService {
	if scorer == nil {
		scorer = NewMatchScorer(DefaultMatchingConfig())
	}
	return &SuggestionService{
		engineDeps: newEngineDeps(validate, logger, opts),
		store:      store,
		audit:      audit,
		directory:  directory,
		tx:         tx,
		scorer:     scorer,
	}
}

// Generate ranks the candidates for one student request and stores a NEW suggestion.
// The tutor directory is used when the request carries no candidates.
func (s *SuggestionService) Generate(ctx context.Context, req dto.GenerateSuggestionRequest, actor models.Actor) (*models.MatchingSuggestion, error) {
	if err := s.gate.Authorize(ActionGenerateSuggestion, actor.Role); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	for _, window := range req.PreferredWindows {
		if !window.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "preferred window must end after it starts")
		}
	}

	candidates := req.Candidates
	if len(candidates) == 0 && s.directory != nil {
		directory, err := s.directory.ListTutors(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to read tutor directory")
		}
		candidates = directory
	}

	now := s.now()
	request := models.StudentRequest{
		ID:               "REQ-" + uuid.NewString(),
		StudentID:        req.StudentID,
		Course:           req.Course,
		Subject:          req.Subject,
		PreferredWindows: req.PreferredWindows,
		Note:             req.Note,
		SupersedesID:     req.SupersedesID,
		CreatedAt:        now,
	}
	suggestion := &models.MatchingSuggestion{
		Status:       models.SuggestionStatusNew,
		StudentID:    request.StudentID,
		Course:       request.Course,
		Request:      request,
		RankedTutors: s.scorer.Rank(request, candidates),
		CreatedAt:    now,
	}
	if err := s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		return s.store.Create(ctx, exec, suggestion)
	}); err != nil {
		return nil, appErrors.Internal(err, "failed to store suggestion")
	}

	s.metrics.RecordSuggestionGenerated()
	s.logger.Info("matching suggestion generated",
		zap.String("suggestion_id", suggestion.ID),
		zap.String("student_id", suggestion.StudentID),
		zap.Int("candidates", len(suggestion.RankedTutors)),
	)
	return suggestion, nil
}

// Get returns one suggestion.
func (s *SuggestionService) Get(ctx context.Context, id string, actor models.Actor) (*models.MatchingSuggestion, error) {
	if err := s.gate.Authorize(ActionReadSuggestions, actor.Role); err != nil {
		return nil, err
	}
	suggestion, err := s.store.GetByID(ctx, nil, strings.TrimSpace(id))
	if err != nil {
		return nil, storeError(err, "suggestion not found", "failed to load suggestion")
	}
	return suggestion, nil
}

// Transition applies a lifecycle edge. Re-asserting the current status is a no-op;
// leaving a terminal status or taking an undefined edge is a ConflictError.
func (s *SuggestionService) Transition(ctx context.Context, id string, status string, actor models.Actor) (*models.MatchingSuggestion, error) {
	if err := s.gate.Authorize(ActionTransitionSuggestion, actor.Role); err != nil {
		return nil, err
	}
	target := models.SuggestionStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !target.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}
	id = strings.TrimSpace(id)

	release, err := s.lockRecord(ctx, "suggestion", id)
	if err != nil {
		return nil, err
	}
	defer release()

	suggestion, err := s.store.GetByID(ctx, nil, id)
	if err != nil {
		return nil, storeError(err, "suggestion not found", "failed to load suggestion")
	}
	if suggestion.Status == target {
		return suggestion, nil
	}
	if suggestion.Status.IsTerminal() || !suggestion.Status.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "")
	}

	now := s.now()
	previous := suggestion.Status
	err = s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.store.UpdateStatus(ctx, exec, suggestion.ID, suggestion.Version, target, now); err != nil {
			return err
		}
		return s.audit.Create(ctx, exec, &models.AuditLog{
			ActorID:      actor.ID,
			ActorRole:    canonicalRole(actor.Role),
			Action:       models.AuditActionSuggestionStatus,
			ResourceType: models.AuditResourceSuggestion,
			ResourceID:   suggestion.ID,
			Details: auditDetails(map[string]interface{}{
				"from": previous,
				"to":   target,
			}),
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, storeError(err, "suggestion not found", "failed to update suggestion")
	}

	suggestion.Status = target
	suggestion.Version++
	suggestion.UpdatedAt = now
	s.metrics.RecordTransition(target)
	s.logger.Info("matching suggestion transitioned",
		zap.String("suggestion_id", suggestion.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(target)),
		zap.String("actor_id", actor.ID),
	)
	return suggestion, nil
}
