package person

import (
	"time"

	"github.com/google/uuid"
)

// Person represents a row in the persons table: the profile identity of a
// researcher. A Person exists independently of an account; at most one User
// points at it.
type Person struct {
	ID           uuid.UUID
	GivenName    string
	FamilyName   string
	Email        string
	ResearcherID *string // external researcher id (e.g. ORCID), if known
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName renders the person's full name.
func (p *Person) DisplayName() string {
	if p.GivenName == "" {
		return p.FamilyName
	}
	if p.FamilyName == "" {
		return p.GivenName
	}
	return p.GivenName + " " + p.FamilyName
}
