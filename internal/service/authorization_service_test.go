package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

func TestAuthorizationServiceTable(t *testing.T) {
	gate := NewAuthorizationService()

	cases := []struct {
		name    string
		action  Action
		role    string
		allowed bool
	}{
		{"coordinator assigns", ActionCreateManualAssignment, "Coordinator", true},
		{"lead assigns with space", ActionCreateManualAssignment, "Coordinator Lead", true},
		{"chair assigns", ActionCreateManualAssignment, "department_chair", true},
		{"student cannot assign", ActionCreateManualAssignment, "Student", false},
		{"tutor cannot assign", ActionCreateManualAssignment, "TUTOR", false},
		{"program admin transitions", ActionTransitionSuggestion, "ProgramAdmin", true},
		{"lead cannot transition", ActionTransitionSuggestion, "COORDINATOR_LEAD", false},
		{"chair resolves", ActionResolveConflict, "Department-Chair", true},
		{"admin cannot resolve", ActionResolveConflict, "Admin", false},
		{"admin reads audit", ActionReadAuditLog, "admin", true},
		{"coordinator cannot read audit", ActionReadAuditLog, "Coordinator", false},
		{"student affairs reads nothing", ActionReadConflicts, "Student Affairs", false},
		{"empty role", ActionReadSuggestions, "", false},
		{"unknown role", ActionReadSuggestions, "Superuser", false},
		{"unknown action", Action("DeleteEverything"), "Admin", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.Authorize(tc.action, tc.role)
			if tc.allowed {
				require.NoError(t, err)
				return
			}
			requireKind(t, err, appErrors.ErrForbidden)
			require.Equal(t, "you do not have permission", err.Error())
		})
	}
}

func TestAuthorizationServiceAllows(t *testing.T) {
	gate := NewAuthorizationService()
	require.True(t, gate.Allows(ActionScanConflicts, "coordinator"))
	require.False(t, gate.Allows(ActionGenerateSuggestion, "Department Chair"))
}
