package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/feature"
	"github.com/resreg/resreg/internal/user"
)

// Resolver turns principals into session identities and manages their
// round-trip through the session store. sessionKey is the opaque per-browser
// key carried by the transport (cookie) layer.
type Resolver interface {
	Resolve(ctx context.Context, p Principal) (*SessionIdentity, error)
	Current(ctx context.Context, sessionKey string) (*SessionIdentity, error)
	Refresh(ctx context.Context, sessionKey string, si *SessionIdentity) (*SessionIdentity, error)
	Persist(ctx context.Context, sessionKey string, si *SessionIdentity) error
	Clear(ctx context.Context, sessionKey string) error
}

// FederatedResolver resolves identities from gateway claims and the
// collaboration mapper, persisting them in the session store.
type FederatedResolver struct {
	store  Store
	mapper CollaborationMapper
	users  user.Repository
	ttl    time.Duration
}

// NewFederatedResolver creates a FederatedResolver. ttl bounds how long a
// persisted identity stays valid in the store.
func NewFederatedResolver(store Store, mapper CollaborationMapper, users user.Repository, ttl time.Duration) *FederatedResolver {
	return &FederatedResolver{store: store, mapper: mapper, users: users, ttl: ttl}
}

// Resolve extracts claims from the principal and builds a session identity,
// resolving role-membership claims into collaborations via the mapper.
func (r *FederatedResolver) Resolve(ctx context.Context, p Principal) (*SessionIdentity, error) {
	claims, err := ExtractClaims(p)
	if err != nil {
		return nil, err
	}

	collaborations, err := r.mapper.Map(ctx, claims.Entitlements)
	if err != nil {
		return nil, fmt.Errorf("mapping collaborations: %w", err)
	}

	return &SessionIdentity{
		SessionID:      claims.SessionID,
		Email:          claims.Email,
		DisplayName:    claims.DisplayName,
		GivenName:      claims.GivenName,
		FamilyName:     claims.FamilyName,
		Collaborations: collaborations,
	}, nil
}

// Current reads the identity persisted under sessionKey. A missing record is
// ErrNotAuthenticated; a store failure is ErrSessionUnavailable — the caller
// must re-authenticate rather than proceed with a fabricated identity.
func (r *FederatedResolver) Current(ctx context.Context, sessionKey string) (*SessionIdentity, error) {
	if sessionKey == "" {
		return nil, ErrNotAuthenticated
	}

	data, err := r.store.Get(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}

	var si SessionIdentity
	if err := json.Unmarshal(data, &si); err != nil {
		return nil, fmt.Errorf("%w: corrupt session blob: %w", ErrSessionUnavailable, err)
	}

	return &si, nil
}

// Refresh looks up the local account for the identity's external-session id.
// When found it attaches the account and re-persists the identity; when not,
// the identity is returned unchanged — the account may simply not have been
// reconciled yet.
func (r *FederatedResolver) Refresh(ctx context.Context, sessionKey string, si *SessionIdentity) (*SessionIdentity, error) {
	u, err := r.users.GetBySessionID(ctx, si.SessionID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return si, nil
		}
		return nil, fmt.Errorf("refreshing identity: %w", err)
	}

	si.User = u
	if err := r.Persist(ctx, sessionKey, si); err != nil {
		return nil, err
	}

	return si, nil
}

// Persist serializes the identity into the session store under sessionKey.
func (r *FederatedResolver) Persist(ctx context.Context, sessionKey string, si *SessionIdentity) error {
	data, err := json.Marshal(si)
	if err != nil {
		return fmt.Errorf("serializing session identity: %w", err)
	}

	if err := r.store.Put(ctx, sessionKey, data, time.Now().Add(r.ttl)); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}

	return nil
}

// Clear removes the identity persisted under sessionKey.
func (r *FederatedResolver) Clear(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return nil
	}
	if err := r.store.Delete(ctx, sessionKey); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	return nil
}

// developmentUserID is the stable account id of the bypass identity, so
// repeated requests see the same user.
var developmentUserID = uuid.MustParse("00000000-0000-0000-0000-0000000000dd")

// BypassResolver is the development-mode resolver: every call yields the same
// fixed identity and nothing touches the directory or the session store.
type BypassResolver struct{}

// NewBypassResolver creates a BypassResolver.
func NewBypassResolver() *BypassResolver {
	return &BypassResolver{}
}

// DevelopmentIdentity returns the fixed identity used in bypass mode.
func DevelopmentIdentity() *SessionIdentity {
	return &SessionIdentity{
		SessionID:   "dev-session",
		Email:       "developer@localhost",
		DisplayName: "Development User",
		GivenName:   "Development",
		FamilyName:  "User",
		User: &user.User{
			ID:          developmentUserID,
			DirectoryID: "dev-directory",
			Email:       "developer@localhost",
			DisplayName: "Development User",
			Tier:        user.TierSuper,
		},
	}
}

// Resolve returns the fixed development identity regardless of the principal.
func (r *BypassResolver) Resolve(_ context.Context, _ Principal) (*SessionIdentity, error) {
	return DevelopmentIdentity(), nil
}

// Current returns the fixed development identity.
func (r *BypassResolver) Current(_ context.Context, _ string) (*SessionIdentity, error) {
	return DevelopmentIdentity(), nil
}

// Refresh returns the identity unchanged.
func (r *BypassResolver) Refresh(_ context.Context, _ string, si *SessionIdentity) (*SessionIdentity, error) {
	return si, nil
}

// Persist is a no-op; the development identity is never stored.
func (r *BypassResolver) Persist(_ context.Context, _ string, _ *SessionIdentity) error {
	return nil
}

// Clear is a no-op.
func (r *BypassResolver) Clear(_ context.Context, _ string) error {
	return nil
}

// Switch selects between the federated and bypass resolvers on every call by
// re-reading the feature flag, so the mode can change without a restart.
type Switch struct {
	flags     feature.Source
	federated Resolver
	bypass    Resolver
}

// NewSwitch creates a Switch over the two resolver variants.
func NewSwitch(flags feature.Source, federated, bypass Resolver) *Switch {
	return &Switch{flags: flags, federated: federated, bypass: bypass}
}

func (s *Switch) active() Resolver {
	if s.flags.FederatedEnabled() {
		return s.federated
	}
	slog.Debug("federated mode disabled; using bypass identity")
	return s.bypass
}

// Resolve delegates to the active resolver.
func (s *Switch) Resolve(ctx context.Context, p Principal) (*SessionIdentity, error) {
	return s.active().Resolve(ctx, p)
}

// Current delegates to the active resolver.
func (s *Switch) Current(ctx context.Context, sessionKey string) (*SessionIdentity, error) {
	return s.active().Current(ctx, sessionKey)
}

// Refresh delegates to the active resolver.
func (s *Switch) Refresh(ctx context.Context, sessionKey string, si *SessionIdentity) (*SessionIdentity, error) {
	return s.active().Refresh(ctx, sessionKey, si)
}

// Persist delegates to the active resolver.
func (s *Switch) Persist(ctx context.Context, sessionKey string, si *SessionIdentity) error {
	return s.active().Persist(ctx, sessionKey, si)
}

// Clear delegates to the active resolver.
func (s *Switch) Clear(ctx context.Context, sessionKey string) error {
	return s.active().Clear(ctx, sessionKey)
}
