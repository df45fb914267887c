package validation

import "strings"

// CreateTokenRequest mirrors the fields needed for create token validation.
type CreateTokenRequest struct {
	Name string
}

// ValidateCreateTokenRequest validates the fields of a create token request.
func ValidateCreateTokenRequest(req CreateTokenRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	return errs
}
