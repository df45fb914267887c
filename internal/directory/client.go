// Package directory talks to the external federated-identity directory that
// owns the authoritative record of collaborations and their members.
package directory

import (
	"context"
	"errors"
)

// ErrGroupNotFound is returned when the directory has no group for an id or URN.
var ErrGroupNotFound = errors.New("directory group not found")

// ErrProfileNotFound is returned when the directory has no profile for a member id.
var ErrProfileNotFound = errors.New("directory member profile not found")

// Group is a directory group record.
type Group struct {
	ExternalID  string
	DisplayName string
	Description string
	URN         string
	Members     []Member
}

// Member is a membership entry inside a Group.
type Member struct {
	ExternalID  string
	DisplayName string
}

// Profile is a directory member profile record.
type Profile struct {
	ExternalID string
	GivenName  string
	FamilyName string
	Email      string
}

// Client exposes the directory lookups the reconciliation engine needs.
// Implementations return ErrGroupNotFound / ErrProfileNotFound for confirmed
// absence; any other error is a transport or directory failure.
type Client interface {
	GetGroup(ctx context.Context, externalID string) (*Group, error)
	GetMemberProfile(ctx context.Context, externalMemberID string) (*Profile, error)
	FindGroupByURN(ctx context.Context, urn string) (*Group, error)
}

// ConnectivityStatus describes the outcome of a directory health probe.
type ConnectivityStatus struct {
	Connected bool
	Detail    string
}

// HealthChecker probes directory connectivity for the health endpoint.
type HealthChecker interface {
	CheckConnectivity(ctx context.Context) ConnectivityStatus
}
