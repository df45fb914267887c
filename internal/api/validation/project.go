package validation

import (
	"strings"
	"time"
)

// UpdateProjectRequest mirrors the fields needed for update project
// validation. Nil fields are not validated.
type UpdateProjectRequest struct {
	Title       *string
	Description *string
	EndDate     *string
}

// ValidateUpdateProjectRequest validates only non-nil fields on an update
// request.
func ValidateUpdateProjectRequest(req UpdateProjectRequest) []FieldError {
	var errs []FieldError

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			errs = append(errs, FieldError{Field: "title", Message: "title must not be empty"})
		} else if len(title) > 255 {
			errs = append(errs, FieldError{Field: "title", Message: "title must be at most 255 characters"})
		}
	}

	if req.Description != nil && len(*req.Description) > 4000 {
		errs = append(errs, FieldError{Field: "description", Message: "description must be at most 4000 characters"})
	}

	if req.EndDate != nil {
		if _, err := time.Parse("2006-01-02", *req.EndDate); err != nil {
			errs = append(errs, FieldError{Field: "endDate", Message: "endDate must be a date in YYYY-MM-DD format"})
		}
	}

	return errs
}
