package project

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a row in the projects table. CorrelationID is the
// external directory group id; it is nil until the first reconciliation pass
// links the project to its collaboration.
type Project struct {
	ID            uuid.UUID
	CorrelationID *string
	Title         string
	Description   string
	StartDate     time.Time
	EndDate       *time.Time
	LastEdited    time.Time
	CreatedAt     time.Time
}
