// Package identity resolves authenticated principals into session identities
// and carries them through the request lifecycle.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/resreg/resreg/internal/directory"
	"github.com/resreg/resreg/internal/user"
)

// ErrNotAuthenticated is returned when no session or principal is present.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrInvalidPrincipal is returned when a required claim is missing.
var ErrInvalidPrincipal = errors.New("invalid principal")

// ErrSessionUnavailable is returned when the session store cannot be used.
// Fatal for the request; the caller must re-authenticate.
var ErrSessionUnavailable = errors.New("session store unavailable")

// Collaboration pairs one directory group (mapped to a project) with the role
// groups that scope access inside it.
type Collaboration struct {
	Organization string            `json:"organization"`
	Group        directory.Group   `json:"group"`
	Groups       []directory.Group `json:"groups"`
}

// SessionIdentity is the ephemeral identity of an authenticated session. It
// is serialized into the session store, never into the database.
type SessionIdentity struct {
	SessionID      string          `json:"sessionId"` // external-session correlation id
	Email          string          `json:"email"`
	DisplayName    string          `json:"displayName"`
	GivenName      string          `json:"givenName"`
	FamilyName     string          `json:"familyName"`
	User           *user.User      `json:"user,omitempty"` // attached by Refresh once reconciled
	Collaborations []Collaboration `json:"collaborations"`
}

// Principal is an upstream-authenticated subject: a bag of claims produced by
// the gateway's identity assertion. How the assertion was obtained is not
// this package's concern.
type Principal struct {
	Claims map[string]any
}

// Store is the transport session store: an opaque per-browser key-value blob
// store. Implementations return ErrSessionNotFound for unknown keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, expires time.Time) error
	Delete(ctx context.Context, key string) error
}

// ErrSessionNotFound is returned by a Store when no blob exists for a key.
var ErrSessionNotFound = errors.New("session not found")

// CollaborationMapper turns role-membership entitlement claims into resolved
// Collaborations. The reconciliation engine treats the result as input.
type CollaborationMapper interface {
	Map(ctx context.Context, entitlements []string) ([]Collaboration, error)
}
