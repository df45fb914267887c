package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resreg/resreg/internal/directory"
	"github.com/resreg/resreg/internal/feature"
	"github.com/resreg/resreg/internal/identity"
	"github.com/resreg/resreg/internal/metrics"
	"github.com/resreg/resreg/internal/role"
	"github.com/resreg/resreg/internal/user"
)

type testEnv struct {
	reconciler *Reconciler
	dir        *fakeDirectory
	projects   *fakeProjects
	users      *fakeUsers
	persons    *fakePersons
	roles      *fakeRoles
}

func newTestEnv(federated bool) *testEnv {
	env := &testEnv{
		dir:      newFakeDirectory(),
		projects: newFakeProjects(),
		users:    newFakeUsers(),
		persons:  newFakePersons(),
		roles:    newFakeRoles(),
	}
	env.reconciler = New(
		feature.Static(federated),
		env.dir,
		env.projects,
		env.users,
		env.persons,
		env.roles,
		metrics.Noop{},
	)
	return env
}

func memberProfile(id, given, family, email string) *directory.Profile {
	return &directory.Profile{ExternalID: id, GivenName: given, FamilyName: family, Email: email}
}

// singleCollaboration builds an identity carrying one collaboration with the
// given primary group and role groups.
func singleCollaboration(sessionID, email string, primary directory.Group, roleGroups ...directory.Group) *identity.SessionIdentity {
	return &identity.SessionIdentity{
		SessionID: sessionID,
		Email:     email,
		Collaborations: []identity.Collaboration{
			{Organization: "org", Group: primary, Groups: roleGroups},
		},
	}
}

func TestReconcile_NilIdentity(t *testing.T) {
	env := newTestEnv(true)

	err := env.reconciler.Reconcile(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNilIdentity)
}

func TestReconcile_FederatedOff_NoDirectoryCalls(t *testing.T) {
	env := newTestEnv(false)

	si := singleCollaboration("sess-1", "ada@example.org", directory.Group{
		ExternalID:  "grp-1",
		DisplayName: "Quantum Imaging",
		Members:     []directory.Member{{ExternalID: "m-1"}},
	})

	err := env.reconciler.Reconcile(context.Background(), si)

	require.NoError(t, err)
	assert.Zero(t, env.dir.calls)
	assert.Zero(t, env.projects.upserts)
	assert.Zero(t, env.users.upserts)
}

func TestReconcile_EmptyMembers_ProjectOnly(t *testing.T) {
	env := newTestEnv(true)

	si := singleCollaboration("sess-1", "ada@example.org", directory.Group{
		ExternalID:  "grp-1",
		DisplayName: "Quantum Imaging",
		Description: "Imaging collaboration",
	})

	err := env.reconciler.Reconcile(context.Background(), si)

	require.NoError(t, err)

	p, err := env.projects.GetByCorrelationID(context.Background(), "grp-1")
	require.NoError(t, err)
	assert.Equal(t, "Quantum Imaging", p.Title)
	assert.Equal(t, "Imaging collaboration", p.Description)
	assert.Empty(t, env.users.byDirectory)
}

func TestReconcile_CreatesAccountsAndPersons(t *testing.T) {
	env := newTestEnv(true)
	env.dir.addProfile(memberProfile("m-1", "Ada", "Lovelace", "ada@example.org"))

	si := singleCollaboration("sess-1", "ada@example.org", directory.Group{
		ExternalID:  "grp-1",
		DisplayName: "Quantum Imaging",
		Members:     []directory.Member{{ExternalID: "m-1", DisplayName: "Ada Lovelace"}},
	})

	err := env.reconciler.Reconcile(context.Background(), si)

	require.NoError(t, err)

	u, err := env.users.GetByDirectoryID(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", u.Email)
	assert.Equal(t, "Ada Lovelace", u.DisplayName)
	assert.Equal(t, user.TierDefault, u.Tier)
	require.NotNil(t, u.SessionID)
	assert.Equal(t, "sess-1", *u.SessionID)

	require.NotNil(t, u.PersonID)
	p, err := env.persons.GetByID(context.Background(), *u.PersonID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.GivenName)
	assert.Equal(t, 1, env.persons.creates)
}

func TestReconcile_SkipsMemberWithoutProfile(t *testing.T) {
	env := newTestEnv(true)
	env.dir.addProfile(memberProfile("m-1", "Ada", "Lovelace", "ada@example.org"))
	// m-2 has no directory profile.

	si := singleCollaboration("sess-1", "ada@example.org", directory.Group{
		ExternalID: "grp-1",
		Members: []directory.Member{
			{ExternalID: "m-1"},
			{ExternalID: "m-2"},
		},
	})

	err := env.reconciler.Reconcile(context.Background(), si)

	require.NoError(t, err)

	_, err = env.users.GetByDirectoryID(context.Background(), "m-1")
	assert.NoError(t, err)
	_, err = env.users.GetByDirectoryID(context.Background(), "m-2")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestReconcile_ProfileLookupFailureSkipsOnlyThatMember(t *testing.T) {
	env := newTestEnv(true)
	env.dir.addProfile(memberProfile("m-1", "Ada", "Lovelace", "ada@example.org"))
	env.dir.profileErr["m-2"] = errors.New("directory timeout")

	si := singleCollaboration("sess-1", "ada@example.org", directory.Group{
		ExternalID: "grp-1",
		Members: []directory.Member{
			{ExternalID: "m-1"},
			{ExternalID: "m-2"},
		},
	})

	err := env.reconciler.Reconcile(context.Background(), si)

	require.NoError(t, err)
	_, err = env.users.GetByDirectoryID(context.Background(), "m-1")
	assert.NoError(t, err)
	_, err = env.users.GetByDirectoryID(context.Background(), "m-2")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestReconcile_EmailMatchAttachesSession(t *testing.T) {
	env := newTestEnv(true)
	env.dir.addProfile(memberProfile("m-1", "Ada", "Lovelace", "ada@example.org"))

	// Pre-existing account from an earlier reconciliation, no session yet.
	_, err := env.users.UpsertFromProfile(context.Background(), &user.User{
		DirectoryID: "m-1",
		Email:       "ada@example.org",
		Tier:        user.TierDefault,
	}, "")
	require.NoError(t, err)

	si := singleCollaboration("sess-9", "ada@example.org", directory.Group{
		ExternalID: "grp-1",
		Members:    []directory.Member{{ExternalID: "m-1"}},
	})

	require.NoError(t, env.reconciler.Reconcile(context.Background(), si))

	u, err := env.users.GetByDirectoryID(context.Background(), "m-1")
	require.NoError(t, err)
	require.NotNil(t, u.SessionID)
	assert.Equal(t, "sess-9", *u.SessionID)
}

func TestReconcile_EmailMismatchLeavesSessionDetached(t *testing.T) {
	env := newTestEnv(true)
	env.dir.addProfile(memberProfile("m-1", "Ada", "Lovelace", "ada@example.org"))

	_, err := env.users.UpsertFromProfile(context.Background(), &user.User{
		DirectoryID: "m-1",
		Email:       "other@example.org",
		Tier:        user.TierDefault,
	}, "")
	require.NoError(t, err)

	// The login session belongs to someone whose email does not match the
	// stored account; the session id must not be attached.
	si := singleCollaboration("sess-9", "ada@example.org", directory.Group{
		ExternalID: "grp-1",
		Members:    []directory.Member{{ExternalID: "m-1"}},
	})

	require.NoError(t, env.reconciler.Reconcile(context.Background(), si))

	u, err := env.users.GetByDirectoryID(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Nil(t, u.SessionID)
}

func TestReconcile_ExistingAccountKeepsPerson(t *testing.T) {
	env := newTestEnv(true)
	env.dir.addProfile(memberProfile("m-1", "Ada", "Lovelace", "ada@example.org"))

	si := singleCollaboration("sess-1", "ada@example.org", directory.Group{
		ExternalID: "grp-1",
		Members:    []directory.Member{{ExternalID: "m-1"}},
	})

	require.NoError(t, env.reconciler.Reconcile(context.Background(), si))
	require.NoError(t, env.reconciler.Reconcile(context.Background(), si))

	// The second pass reuses the existing person link.
	assert.Equal(t, 1, env.persons.creates)
}

func TestReconcile_Idempotent(t *testing.T) {
	env := newTestEnv(true)
	env.dir.addProfile(memberProfile("m-1", "Ada", "Lovelace", "ada@example.org"))

	group := directory.Group{
		ExternalID:  "grp-1",
		DisplayName: "Quantum Imaging",
		URN:         "urn:mace:example.org:group:org:qi",
		Members:     []directory.Member{{ExternalID: "m-1"}},
	}
	roleGroup := directory.Group{
		ExternalID:  "grp-1-admin",
		DisplayName: "QI Admins",
		URN:         "urn:mace:example.org:group:org:qi:admin",
		Members:     []directory.Member{{ExternalID: "m-1"}},
	}
	si := singleCollaboration("sess-1", "ada@example.org", group, roleGroup)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), si))
	require.NoError(t, env.reconciler.Reconcile(context.Background(), si))

	projects, err := env.projects.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Len(t, env.users.byDirectory, 1)
	assert.Len(t, env.roles.byKey, 1)
}

func TestReconcile_RoleGroupsBecomeRolesWithAssignments(t *testing.T) {
	env := newTestEnv(true)
	env.dir.addProfile(memberProfile("m-1", "Ada", "Lovelace", "ada@example.org"))
	env.dir.addProfile(memberProfile("m-2", "Grace", "Hopper", "grace@example.org"))

	group := directory.Group{
		ExternalID: "grp-1",
		URN:        "urn:mace:example.org:group:org:qi",
		Members: []directory.Member{
			{ExternalID: "m-1"},
			{ExternalID: "m-2"},
		},
	}
	adminGroup := directory.Group{
		ExternalID: "grp-1-admin",
		URN:        "urn:mace:example.org:group:org:qi:admin",
		Members:    []directory.Member{{ExternalID: "m-1"}},
	}
	si := singleCollaboration("sess-1", "ada@example.org", group, adminGroup)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), si))

	p, err := env.projects.GetByCorrelationID(context.Background(), "grp-1")
	require.NoError(t, err)

	pr := env.roles.byKey[roleKey(p.ID, adminGroup.URN)]
	require.NotNil(t, pr)
	assert.Equal(t, role.TypeAdmin, pr.RoleType)

	ada, err := env.users.GetByDirectoryID(context.Background(), "m-1")
	require.NoError(t, err)
	grace, err := env.users.GetByDirectoryID(context.Background(), "m-2")
	require.NoError(t, err)

	assert.True(t, env.roles.assigned(ada.ID, pr.ID))
	assert.False(t, env.roles.assigned(grace.ID, pr.ID))

	allowed, err := env.roles.UserHasRoleInProject(context.Background(), ada.ID, p.ID, role.TypeAdmin)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestReconcile_RoleMemberWithoutAccountIsSkipped(t *testing.T) {
	env := newTestEnv(true)

	group := directory.Group{
		ExternalID: "grp-1",
		URN:        "urn:mace:example.org:group:org:qi",
	}
	adminGroup := directory.Group{
		ExternalID: "grp-1-admin",
		URN:        "urn:mace:example.org:group:org:qi:admin",
		Members:    []directory.Member{{ExternalID: "ghost"}},
	}
	si := singleCollaboration("sess-1", "ada@example.org", group, adminGroup)

	err := env.reconciler.Reconcile(context.Background(), si)

	require.NoError(t, err)
	assert.Empty(t, env.roles.assignments)
}
