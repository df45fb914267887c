package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/directory"
	"github.com/resreg/resreg/internal/person"
	"github.com/resreg/resreg/internal/project"
	"github.com/resreg/resreg/internal/role"
	"github.com/resreg/resreg/internal/user"
)

// fakeDirectory serves canned groups and profiles. Every lookup is counted so
// tests can assert that federated-off paths never touch the directory.
type fakeDirectory struct {
	groups      map[string]*directory.Group
	groupsByURN map[string]*directory.Group
	profiles    map[string]*directory.Profile
	profileErr  map[string]error

	calls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		groups:      make(map[string]*directory.Group),
		groupsByURN: make(map[string]*directory.Group),
		profiles:    make(map[string]*directory.Profile),
		profileErr:  make(map[string]error),
	}
}

func (d *fakeDirectory) addGroup(g *directory.Group) {
	d.groups[g.ExternalID] = g
	if g.URN != "" {
		d.groupsByURN[g.URN] = g
	}
}

func (d *fakeDirectory) addProfile(p *directory.Profile) {
	d.profiles[p.ExternalID] = p
}

func (d *fakeDirectory) GetGroup(_ context.Context, externalID string) (*directory.Group, error) {
	d.calls++
	g, ok := d.groups[externalID]
	if !ok {
		return nil, directory.ErrGroupNotFound
	}
	return g, nil
}

func (d *fakeDirectory) FindGroupByURN(_ context.Context, urn string) (*directory.Group, error) {
	d.calls++
	g, ok := d.groupsByURN[urn]
	if !ok {
		return nil, directory.ErrGroupNotFound
	}
	return g, nil
}

func (d *fakeDirectory) GetMemberProfile(_ context.Context, externalMemberID string) (*directory.Profile, error) {
	d.calls++
	if err, ok := d.profileErr[externalMemberID]; ok {
		return nil, err
	}
	p, ok := d.profiles[externalMemberID]
	if !ok {
		return nil, directory.ErrProfileNotFound
	}
	return p, nil
}

// fakeProjects is an in-memory project.Repository honoring the upsert
// contract: keyed by correlation id, directory values win.
type fakeProjects struct {
	byID    map[uuid.UUID]*project.Project
	upserts int
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{byID: make(map[uuid.UUID]*project.Project)}
}

func (f *fakeProjects) UpsertByCorrelationID(_ context.Context, p *project.Project) error {
	f.upserts++
	for _, existing := range f.byID {
		if existing.CorrelationID != nil && p.CorrelationID != nil && *existing.CorrelationID == *p.CorrelationID {
			existing.Title = p.Title
			existing.Description = p.Description
			*p = *existing
			return nil
		}
	}
	p.ID = uuid.New()
	stored := *p
	f.byID[p.ID] = &stored
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id uuid.UUID) (*project.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) GetByCorrelationID(_ context.Context, correlationID string) (*project.Project, error) {
	for _, p := range f.byID {
		if p.CorrelationID != nil && *p.CorrelationID == correlationID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, project.ErrProjectNotFound
}

func (f *fakeProjects) List(_ context.Context) ([]project.Project, error) {
	out := make([]project.Project, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProjects) ListCorrelated(_ context.Context) ([]project.Project, error) {
	out := make([]project.Project, 0, len(f.byID))
	for _, p := range f.byID {
		if p.CorrelationID != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProjects) Update(_ context.Context, id uuid.UUID, upd project.Update) (*project.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.EndDate != nil {
		p.EndDate = upd.EndDate
	}
	cp := *p
	return &cp, nil
}

// fakeUsers is an in-memory user.Repository implementing the email-guarded
// session attach the real SQL statement performs.
type fakeUsers struct {
	byDirectory map[string]*user.User
	upserts     int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byDirectory: make(map[string]*user.User)}
}

func (f *fakeUsers) UpsertFromProfile(_ context.Context, u *user.User, sessionEmail string) (*user.User, error) {
	f.upserts++
	existing, ok := f.byDirectory[u.DirectoryID]
	if !ok {
		u.ID = uuid.New()
		stored := *u
		f.byDirectory[u.DirectoryID] = &stored
		cp := stored
		return &cp, nil
	}
	if existing.Email == sessionEmail {
		existing.SessionID = u.SessionID
	}
	cp := *existing
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	for _, u := range f.byDirectory {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUsers) GetByDirectoryID(_ context.Context, directoryID string) (*user.User, error) {
	u, ok := f.byDirectory[directoryID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetBySessionID(_ context.Context, sessionID string) (*user.User, error) {
	for _, u := range f.byDirectory {
		if u.SessionID != nil && *u.SessionID == sessionID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUsers) List(_ context.Context) ([]user.User, error) {
	out := make([]user.User, 0, len(f.byDirectory))
	for _, u := range f.byDirectory {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUsers) SetFavorites(_ context.Context, id uuid.UUID, projectIDs []uuid.UUID) error {
	for _, u := range f.byDirectory {
		if u.ID == id {
			u.FavoriteIDs = projectIDs
			return nil
		}
	}
	return user.ErrUserNotFound
}

func (f *fakeUsers) TouchRecent(_ context.Context, id uuid.UUID, projectID uuid.UUID) error {
	for _, u := range f.byDirectory {
		if u.ID == id {
			u.RecentIDs = append([]uuid.UUID{projectID}, u.RecentIDs...)
			return nil
		}
	}
	return user.ErrUserNotFound
}

// fakePersons is an in-memory person.Repository.
type fakePersons struct {
	byID    map[uuid.UUID]*person.Person
	creates int
}

func newFakePersons() *fakePersons {
	return &fakePersons{byID: make(map[uuid.UUID]*person.Person)}
}

func (f *fakePersons) Create(_ context.Context, p *person.Person) error {
	f.creates++
	p.ID = uuid.New()
	stored := *p
	f.byID[p.ID] = &stored
	return nil
}

func (f *fakePersons) GetByID(_ context.Context, id uuid.UUID) (*person.Person, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, person.ErrPersonNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePersons) GetByEmail(_ context.Context, email string) (*person.Person, error) {
	for _, p := range f.byID {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, person.ErrPersonNotFound
}

// fakeRoles is an in-memory role.Repository keyed by (project id, urn).
type fakeRoles struct {
	byKey       map[string]*role.ProjectRole
	assignments map[string]bool
	upserts     int
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{
		byKey:       make(map[string]*role.ProjectRole),
		assignments: make(map[string]bool),
	}
}

func roleKey(projectID uuid.UUID, urn string) string {
	return projectID.String() + "|" + urn
}

func (f *fakeRoles) Upsert(_ context.Context, r *role.ProjectRole) error {
	f.upserts++
	key := roleKey(r.ProjectID, r.URN)
	if existing, ok := f.byKey[key]; ok {
		existing.RoleType = r.RoleType
		existing.Name = r.Name
		existing.Description = r.Description
		existing.DirectoryID = r.DirectoryID
		*r = *existing
		return nil
	}
	r.ID = uuid.New()
	stored := *r
	f.byKey[key] = &stored
	return nil
}

func (f *fakeRoles) GetByID(_ context.Context, id uuid.UUID) (*role.ProjectRole, error) {
	for _, r := range f.byKey {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, role.ErrRoleNotFound
}

func (f *fakeRoles) ListByProject(_ context.Context, projectID uuid.UUID) ([]role.ProjectRole, error) {
	out := []role.ProjectRole{}
	for _, r := range f.byKey {
		if r.ProjectID == projectID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRoles) AssignUser(_ context.Context, userID, roleID uuid.UUID) error {
	f.assignments[fmt.Sprintf("%s|%s", userID, roleID)] = true
	return nil
}

func (f *fakeRoles) UserHasRoleInProject(_ context.Context, userID, projectID uuid.UUID, roleType string) (bool, error) {
	for _, r := range f.byKey {
		if r.ProjectID != projectID || r.RoleType != roleType {
			continue
		}
		if f.assignments[fmt.Sprintf("%s|%s", userID, r.ID)] {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoles) assigned(userID, roleID uuid.UUID) bool {
	return f.assignments[fmt.Sprintf("%s|%s", userID, roleID)]
}
