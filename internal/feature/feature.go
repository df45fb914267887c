// Package feature provides runtime-togglable feature flags.
package feature

import (
	"os"
	"strconv"
)

// Source reports feature flag state. Implementations must re-evaluate on
// every call; callers rely on toggles taking effect without a restart.
type Source interface {
	FederatedEnabled() bool
}

// EnvSource reads flags from the environment on each call, falling back to
// the boot-time default when the variable is unset or malformed.
type EnvSource struct {
	defaultFederated bool
}

// NewEnvSource creates an EnvSource with the given boot-time default for
// federated mode.
func NewEnvSource(defaultFederated bool) *EnvSource {
	return &EnvSource{defaultFederated: defaultFederated}
}

// FederatedEnabled reports whether federated authentication mode is on.
func (s *EnvSource) FederatedEnabled() bool {
	v := os.Getenv("FEDERATED_AUTH_ENABLED")
	if v == "" {
		return s.defaultFederated
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return s.defaultFederated
	}
	return enabled
}

// Static is a fixed-value Source, used in tests and bypass deployments.
type Static bool

// FederatedEnabled returns the fixed value.
func (s Static) FederatedEnabled() bool { return bool(s) }
