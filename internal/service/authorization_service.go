package service

import (
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

// Action names a guarded engine operation.
type Action string

const (
	ActionCreateManualAssignment Action = "CreateManualAssignment"
	ActionTransitionSuggestion   Action = "TransitionSuggestion"
	ActionGenerateSuggestion     Action = "GenerateSuggestion"
	ActionResolveConflict        Action = "ResolveConflict"
	ActionScanConflicts          Action = "ScanConflicts"
	ActionReadSuggestions        Action = "ReadSuggestions"
	ActionReadConflicts          Action = "ReadConflicts"
	ActionReadAssignments        Action = "ReadAssignments"
	ActionReadAuditLog           Action = "ReadAuditLog"
)

var supervisors = []models.UserRole{
	models.RoleCoordinator,
	models.RoleCoordinatorLead,
	models.RoleProgramAdmin,
	models.RoleAdmin,
	models.RoleDepartmentChair,
}

var defaultPermissions = map[Action][]models.UserRole{
	ActionCreateManualAssignment: supervisors,
	ActionTransitionSuggestion:   {models.RoleCoordinator, models.RoleProgramAdmin},
	ActionGenerateSuggestion:     {models.RoleCoordinator, models.RoleCoordinatorLead, models.RoleProgramAdmin, models.RoleAdmin},
	ActionResolveConflict:        {models.RoleCoordinator, models.RoleProgramAdmin, models.RoleDepartmentChair},
	ActionScanConflicts:          supervisors,
	ActionReadSuggestions:        supervisors,
	ActionReadConflicts:          supervisors,
	ActionReadAssignments:        supervisors,
	ActionReadAuditLog:           {models.RoleProgramAdmin, models.RoleAdmin},
}

// authorizer is the contract every service uses before touching state.
type authorizer interface {
	Authorize(action Action, role string) error
}

// AuthorizationService is a static action to role table. It denies unknown actions,
// unknown roles and empty roles.
type AuthorizationService struct {
	table map[Action]map[models.UserRole]struct{}
}

// NewAuthorizationService builds the gate from the default permission table.
func NewAuthorizationService() *AuthorizationService {
	table := make(map[Action]map[models.UserRole]struct{}, len(defaultPermissions))
	for action, roles := range defaultPermissions {
		allowed := make(map[models.UserRole]struct{}, len(roles))
		for _, role := range roles {
			allowed[role] = struct{}{}
		}
		table[action] = allowed
	}
	return &AuthorizationService{table: table}
}

// Authorize returns nil when role may perform action. The denial never names the
// roles that would have been accepted.
func (s *AuthorizationService) Authorize(action Action, role string) error {
	canonical, ok := models.ParseRole(role)
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	allowed, ok := s.table[action]
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if _, ok := allowed[canonical]; !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return nil
}

// Allows is a boolean convenience over Authorize.
func (s *AuthorizationService) Allows(action Action, role string) bool {
	return s.Authorize(action, role) == nil
}
