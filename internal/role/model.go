package role

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role types a project role can carry.
const (
	TypeAdmin = "admin"
	TypeUser  = "user"
)

// ProjectRole represents a row in the project_roles table: one role group of
// a collaboration, scoped to a project. Logically keyed by (ProjectID, URN).
type ProjectRole struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	RoleType    string
	Name        string
	Description string
	URN         string
	DirectoryID string
	CreatedAt   time.Time
}

// TypeFromURN derives the role type from the last segment of a correlation
// URN. Unrecognized segments map to the regular user role.
func TypeFromURN(urn string) string {
	segment := urn
	if i := strings.LastIndexAny(urn, ":-"); i >= 0 {
		segment = urn[i+1:]
	}
	switch strings.ToLower(segment) {
	case "admin", "admins", "manager", "managers":
		return TypeAdmin
	default:
		return TypeUser
	}
}
