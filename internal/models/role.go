package models

import "strings"

// UserRole is the canonical role enumeration used by the authorization gate.
type UserRole string

const (
	RoleCoordinator     UserRole = "COORDINATOR"
	RoleCoordinatorLead UserRole = "COORDINATOR_LEAD"
	RoleProgramAdmin    UserRole = "PROGRAM_ADMIN"
	RoleAdmin           UserRole = "ADMIN"
	RoleDepartmentChair UserRole = "DEPARTMENT_CHAIR"
	RoleStudentAffairs  UserRole = "STUDENT_AFFAIRS"
	RoleTutor           UserRole = "TUTOR"
	RoleStudent         UserRole = "STUDENT"
)

var roleAliases = map[string]UserRole{
	"COORDINATOR":     RoleCoordinator,
	"COORDINATORLEAD": RoleCoordinatorLead,
	"PROGRAMADMIN":    RoleProgramAdmin,
	"ADMIN":           RoleAdmin,
	"DEPARTMENTCHAIR": RoleDepartmentChair,
	"STUDENTAFFAIRS":  RoleStudentAffairs,
	"TUTOR":           RoleTutor,
	"STUDENT":         RoleStudent,
}

// ParseRole folds the spellings seen across clients ("Coordinator Lead",
// "coordinator_lead", "ProgramAdmin", "PROGRAM_ADMIN") onto one role.
// Unrecognised strings are rejected, never guessed.
func ParseRole(raw string) (UserRole, bool) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(raw)))
	if key == "" {
		return "", false
	}
	role, ok := roleAliases[key]
	return role, ok
}
