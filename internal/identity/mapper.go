package identity

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/resreg/resreg/internal/directory"
)

// DirectoryMapper resolves entitlement URNs into collaborations by querying
// the directory. Entitlements look like
//
//	urn:mace:example.org:group:<org>:<co>            (collaboration itself)
//	urn:mace:example.org:group:<org>:<co>:<role>     (role group inside it)
//
// Entitlements sharing the same <org>:<co> prefix form one collaboration:
// the prefix names the primary group, the suffixed entries its role groups.
type DirectoryMapper struct {
	dir directory.Client
}

// NewDirectoryMapper creates a DirectoryMapper.
func NewDirectoryMapper(dir directory.Client) *DirectoryMapper {
	return &DirectoryMapper{dir: dir}
}

type entitlementGroup struct {
	organization string
	primaryURN   string
	roleURNs     []string
}

// Map resolves the given entitlements. A collaboration whose primary group
// cannot be resolved is dropped with a warning; an unresolvable role group
// drops only that role. Directory absence is not a login failure.
func (m *DirectoryMapper) Map(ctx context.Context, entitlements []string) ([]Collaboration, error) {
	grouped := groupEntitlements(entitlements)

	collaborations := make([]Collaboration, 0, len(grouped))
	for _, eg := range grouped {
		primary, err := m.dir.FindGroupByURN(ctx, eg.primaryURN)
		if err != nil {
			slog.Warn("skipping collaboration: primary group unresolved",
				"urn", eg.primaryURN, "error", err)
			continue
		}

		c := Collaboration{
			Organization: eg.organization,
			Group:        *primary,
			Groups:       make([]directory.Group, 0, len(eg.roleURNs)),
		}

		for _, roleURN := range eg.roleURNs {
			g, err := m.dir.FindGroupByURN(ctx, roleURN)
			if err != nil {
				slog.Warn("skipping role group: unresolved", "urn", roleURN, "error", err)
				continue
			}
			c.Groups = append(c.Groups, *g)
		}

		collaborations = append(collaborations, c)
	}

	return collaborations, nil
}

// groupEntitlements buckets entitlement URNs by their <org>:<co> prefix.
// Malformed entitlements (no ":group:" marker or no co segment) are ignored.
func groupEntitlements(entitlements []string) []entitlementGroup {
	byPrefix := make(map[string]*entitlementGroup)

	for _, e := range entitlements {
		marker := strings.Index(e, ":group:")
		if marker < 0 {
			continue
		}

		base := e[:marker+len(":group:")]
		path := strings.Split(e[marker+len(":group:"):], ":")
		if len(path) < 2 || path[0] == "" || path[1] == "" {
			continue
		}

		primaryURN := base + path[0] + ":" + path[1]
		eg, ok := byPrefix[primaryURN]
		if !ok {
			eg = &entitlementGroup{organization: path[0], primaryURN: primaryURN}
			byPrefix[primaryURN] = eg
		}
		if len(path) > 2 {
			eg.roleURNs = append(eg.roleURNs, e)
		}
	}

	out := make([]entitlementGroup, 0, len(byPrefix))
	for _, eg := range byPrefix {
		out = append(out, *eg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].primaryURN < out[j].primaryURN })

	return out
}
