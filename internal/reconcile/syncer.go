package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/directory"
	"github.com/resreg/resreg/internal/metrics"
	"github.com/resreg/resreg/internal/person"
	"github.com/resreg/resreg/internal/project"
	"github.com/resreg/resreg/internal/role"
	"github.com/resreg/resreg/internal/user"
)

// SyncProject re-fetches a project's authoritative group from the directory
// and adds directory-side members that are absent locally. Existing members
// are neither removed nor re-validated.
//
// Returns project.ErrProjectNotFound when no local project exists for the id
// AND when the directory no longer resolves the project's correlation id —
// callers see a single not-found kind; the log line tells the cases apart.
func (r *Reconciler) SyncProject(ctx context.Context, id uuid.UUID) error {
	p, err := r.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			slog.Info("sync: no local project", "projectId", id)
			r.metrics.RecordSyncFailure()
			return project.ErrProjectNotFound
		}
		return fmt.Errorf("loading project %s: %w", id, err)
	}

	if p.CorrelationID == nil {
		slog.Info("sync: project has no directory correlation", "projectId", id)
		r.metrics.RecordSyncFailure()
		return project.ErrProjectNotFound
	}

	g, err := r.dir.GetGroup(ctx, *p.CorrelationID)
	if err != nil {
		r.metrics.RecordSyncFailure()
		if errors.Is(err, directory.ErrGroupNotFound) {
			r.metrics.RecordDirectoryRequest("not_found")
			slog.Warn("sync: directory group gone", "projectId", id, "correlationId", *p.CorrelationID)
			return project.ErrProjectNotFound
		}
		// A timeout on the primary group lookup fails the whole sync; unlike
		// member profiles there is nothing sensible to continue with.
		r.metrics.RecordDirectoryRequest("error")
		return fmt.Errorf("fetching group %s: %w", *p.CorrelationID, err)
	}
	r.metrics.RecordDirectoryRequest("ok")

	if _, err := r.upsertProject(ctx, g); err != nil {
		return err
	}

	for _, m := range g.Members {
		r.ensureMember(ctx, m)
	}

	slog.Info("project synced", "projectId", id, "correlationId", *p.CorrelationID)

	return nil
}

// SyncProjectRole reconciles one role's membership against the directory
// snapshot of its group. Returns directory.ErrGroupNotFound when the
// directory has no group for the role's correlation id.
func (r *Reconciler) SyncProjectRole(ctx context.Context, p *project.Project, pr *role.ProjectRole) error {
	g, err := r.dir.GetGroup(ctx, pr.DirectoryID)
	if err != nil {
		r.metrics.RecordSyncFailure()
		if errors.Is(err, directory.ErrGroupNotFound) {
			r.metrics.RecordDirectoryRequest("not_found")
			return directory.ErrGroupNotFound
		}
		r.metrics.RecordDirectoryRequest("error")
		return fmt.Errorf("fetching role group %s: %w", pr.DirectoryID, err)
	}
	r.metrics.RecordDirectoryRequest("ok")

	refreshed := &role.ProjectRole{
		ProjectID:   p.ID,
		RoleType:    role.TypeFromURN(g.URN),
		Name:        g.DisplayName,
		Description: g.Description,
		URN:         g.URN,
		DirectoryID: g.ExternalID,
	}
	if refreshed.URN == "" {
		refreshed.URN = pr.URN
		refreshed.RoleType = pr.RoleType
	}

	if err := r.roles.Upsert(ctx, refreshed); err != nil {
		return fmt.Errorf("refreshing role %s: %w", pr.URN, err)
	}
	r.metrics.RecordRoleUpserted()

	for _, m := range g.Members {
		u := r.ensureMember(ctx, m)
		if u == nil {
			continue
		}
		if err := r.roles.AssignUser(ctx, u.ID, refreshed.ID); err != nil {
			return fmt.Errorf("assigning member %s to role %s: %w", m.ExternalID, refreshed.URN, err)
		}
	}

	return nil
}

// ensureMember makes sure a directory member has a local account, creating
// one from its profile when absent. No session context here, so no session
// id is attached and the email guard never fires. Returns nil on skip.
func (r *Reconciler) ensureMember(ctx context.Context, m directory.Member) *user.User {
	existing, err := r.users.GetByDirectoryID(ctx, m.ExternalID)
	if err == nil {
		return existing
	}
	if !errors.Is(err, user.ErrUserNotFound) {
		slog.Warn("skipping member: account lookup failed", "memberId", m.ExternalID, "error", err)
		r.metrics.RecordMemberSkipped(metrics.SkipError)
		return nil
	}

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

	pers := &person.Person{
		GivenName:  profile.GivenName,
		FamilyName: profile.FamilyName,
		Email:      profile.Email,
	}
	if err := r.persons.Create(ctx, pers); err != nil {
		r.metrics.RecordMemberSkipped(metrics.SkipError)
		slog.Warn("skipping member: person record failed", "memberId", m.ExternalID, "error", err)
		return nil
	}

	u := &user.User{
		DirectoryID: profile.ExternalID,
		Email:       profile.Email,
		DisplayName: displayName(profile, m),
		Tier:        user.TierDefault,
		PersonID:    &pers.ID,
	}

	persisted, err := r.users.UpsertFromProfile(ctx, u, "")
	if err != nil {
		r.metrics.RecordMemberSkipped(metrics.SkipError)
		slog.Warn("skipping member: account upsert failed", "memberId", m.ExternalID, "error", err)
		return nil
	}

	return persisted
}

// Sweeper periodically re-runs SyncProject over every correlated project.
// Disabled when interval is zero.
type Sweeper struct {
	reconciler *Reconciler
	projects   project.Repository
	interval   time.Duration
}

// NewSweeper creates a Sweeper.
func NewSweeper(reconciler *Reconciler, projects project.Repository, interval time.Duration) *Sweeper {
	return &Sweeper{reconciler: reconciler, projects: projects, interval: interval}
}

// Start begins the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("sync sweeper started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	projects, err := s.projects.ListCorrelated(ctx)
	if err != nil {
		slog.Error("sweep: failed to list projects", "error", err)
		return
	}

	for _, p := range projects {
		if ctx.Err() != nil {
			return
		}
		if err := s.reconciler.SyncProject(ctx, p.ID); err != nil {
			slog.Warn("sweep: project sync failed", "projectId", p.ID, "error", err)
		}
	}
}
