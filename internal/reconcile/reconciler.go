// Package reconcile merges external directory state into the local
// project/user/role graph. All merges are idempotent upserts; nothing here
// ever deletes local records.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/directory"
	"github.com/resreg/resreg/internal/feature"
	"github.com/resreg/resreg/internal/identity"
	"github.com/resreg/resreg/internal/metrics"
	"github.com/resreg/resreg/internal/person"
	"github.com/resreg/resreg/internal/project"
	"github.com/resreg/resreg/internal/role"
	"github.com/resreg/resreg/internal/user"
)

// ErrNilIdentity is returned when Reconcile is called without an identity.
// Deliberate fail-fast: a missing identity at this point is a caller bug.
var ErrNilIdentity = errors.New("reconcile: nil session identity")

// Reconciler merges a session's collaborations into persistent state.
type Reconciler struct {
	flags    feature.Source
	dir      directory.Client
	projects project.Repository
	users    user.Repository
	persons  person.Repository
	roles    role.Repository
	metrics  metrics.Collector
}

// New creates a Reconciler.
func New(
	flags feature.Source,
	dir directory.Client,
	projects project.Repository,
	users user.Repository,
	persons person.Repository,
	roles role.Repository,
	collector metrics.Collector,
) *Reconciler {
	return &Reconciler{
		flags:    flags,
		dir:      dir,
		projects: projects,
		users:    users,
		persons:  persons,
		roles:    roles,
		metrics:  collector,
	}
}

// Reconcile merges every collaboration the identity carries into the local
// project/user/role graph. Runs once per login. A no-op when federated mode
// is off. Individual member failures are absorbed; everything that resolved
// before a skip stays persisted.
func (r *Reconciler) Reconcile(ctx context.Context, si *identity.SessionIdentity) error {
	if si == nil {
		return ErrNilIdentity
	}
	if !r.flags.FederatedEnabled() {
		return nil
	}

	start := time.Now()
	defer func() {
		r.metrics.RecordReconcilePass(time.Since(start))
	}()

	for i := range si.Collaborations {
		if err := r.reconcileCollaboration(ctx, si, &si.Collaborations[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reconciler) reconcileCollaboration(ctx context.Context, si *identity.SessionIdentity, c *identity.Collaboration) error {
	p, err := r.upsertProject(ctx, &c.Group)
	if err != nil {
		return err
	}

	// Members of the primary group become (or update) local accounts.
	resolved := make(map[string]*user.User, len(c.Group.Members))
	for _, m := range c.Group.Members {
		u := r.reconcileMember(ctx, si, m)
		if u != nil {
			resolved[m.ExternalID] = u
		}
	}

	// Each subordinate group is one role on the project.
	for i := range c.Groups {
		if err := r.upsertRole(ctx, p, &c.Groups[i], resolved); err != nil {
			return err
		}
	}

	return nil
}

// upsertProject finds-or-creates the project keyed by the group's directory
// id and overwrites title/description with the directory's current values.
// The directory is authoritative; last write wins.
func (r *Reconciler) upsertProject(ctx context.Context, g *directory.Group) (*project.Project, error) {
	correlationID := g.ExternalID
	p := &project.Project{
		CorrelationID: &correlationID,
		Title:         g.DisplayName,
		Description:   g.Description,
		StartDate:     time.Now(),
	}

	if err := r.projects.UpsertByCorrelationID(ctx, p); err != nil {
		return nil, fmt.Errorf("reconciling project %s: %w", correlationID, err)
	}

	r.metrics.RecordProjectUpserted()
	slog.Debug("project reconciled", "correlationId", correlationID, "projectId", p.ID)

	return p, nil
}

// reconcileMember resolves one group member into a local account. Returns
// nil when the member was skipped: absence of a directory profile is not an
// error, and a failed lookup aborts only this member.
func (r *Reconciler) reconcileMember(ctx context.Context, si *identity.SessionIdentity, m directory.Member) *user.User {
	profile, err := r.dir.GetMemberProfile(ctx, m.ExternalID)
	if err != nil {
		if errors.Is(err, directory.ErrProfileNotFound) {
			r.metrics.RecordDirectoryRequest("not_found")
			r.metrics.RecordMemberSkipped(metrics.SkipAbsent)
			slog.Info("skipping member: no directory profile", "memberId", m.ExternalID)
		} else {
			r.metrics.RecordDirectoryRequest("error")
			r.metrics.RecordMemberSkipped(metrics.SkipError)
			slog.Warn("skipping member: profile lookup failed", "memberId", m.ExternalID, "error", err)
		}
		return nil
	}
	r.metrics.RecordDirectoryRequest("ok")

	personID, err := r.ensurePerson(ctx, profile)
	if err != nil {
		r.metrics.RecordMemberSkipped(metrics.SkipError)
		slog.Warn("skipping member: person record failed", "memberId", m.ExternalID, "error", err)
		return nil
	}

	sessionID := si.SessionID
	u := &user.User{
		DirectoryID: profile.ExternalID,
		SessionID:   &sessionID,
		Email:       profile.Email,
		DisplayName: displayName(profile, m),
		Tier:        user.TierDefault,
		PersonID:    personID,
	}

	// The statement attaches the session id only when the stored email
	// matches the session's email; a new row gets it unconditionally.
	persisted, err := r.users.UpsertFromProfile(ctx, u, si.Email)
	if err != nil {
		r.metrics.RecordMemberSkipped(metrics.SkipError)
		slog.Warn("skipping member: account upsert failed", "memberId", m.ExternalID, "error", err)
		return nil
	}

	return persisted
}

// ensurePerson creates a Person for a profile that has no local account yet,
// and reuses the existing link otherwise.
func (r *Reconciler) ensurePerson(ctx context.Context, profile *directory.Profile) (*uuid.UUID, error) {
	existing, err := r.users.GetByDirectoryID(ctx, profile.ExternalID)
	if err == nil {
		return existing.PersonID, nil
	}
	if !errors.Is(err, user.ErrUserNotFound) {
		return nil, err
	}

	p := &person.Person{
		GivenName:  profile.GivenName,
		FamilyName: profile.FamilyName,
		Email:      profile.Email,
	}
	if err := r.persons.Create(ctx, p); err != nil {
		return nil, err
	}

	return &p.ID, nil
}

// upsertRole reconciles one role group: the role row itself plus the
// user-role associations for every resolvable member.
func (r *Reconciler) upsertRole(ctx context.Context, p *project.Project, g *directory.Group, resolved map[string]*user.User) error {
	pr := &role.ProjectRole{
		ProjectID:   p.ID,
		RoleType:    role.TypeFromURN(g.URN),
		Name:        g.DisplayName,
		Description: g.Description,
		URN:         g.URN,
		DirectoryID: g.ExternalID,
	}

	if err := r.roles.Upsert(ctx, pr); err != nil {
		return fmt.Errorf("reconciling role %s: %w", g.URN, err)
	}
	r.metrics.RecordRoleUpserted()

	for _, m := range g.Members {
		u := resolved[m.ExternalID]
		if u == nil {
			// Role-group members are associated through accounts already
			// resolved, this pass or an earlier one. No account means skip.
			existing, err := r.users.GetByDirectoryID(ctx, m.ExternalID)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					slog.Info("skipping role member: no local account", "memberId", m.ExternalID, "role", g.URN)
					r.metrics.RecordMemberSkipped(metrics.SkipAbsent)
				} else {
					slog.Warn("skipping role member: lookup failed", "memberId", m.ExternalID, "error", err)
					r.metrics.RecordMemberSkipped(metrics.SkipError)
				}
				continue
			}
			u = existing
		}

		if err := r.roles.AssignUser(ctx, u.ID, pr.ID); err != nil {
			return fmt.Errorf("assigning member %s to role %s: %w", m.ExternalID, g.URN, err)
		}
	}

	return nil
}

func displayName(profile *directory.Profile, m directory.Member) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	p := person.Person{GivenName: profile.GivenName, FamilyName: profile.FamilyName}
	return p.DisplayName()
}
