package directory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// SCIMClient implements Client against a SCIM-style directory API.
type SCIMClient struct {
	client *resty.Client
}

type scimSettings struct {
	timeout    time.Duration
	httpClient *http.Client
}

// SCIMOption configures a SCIMClient.
type SCIMOption func(*scimSettings)

// WithTimeout bounds every directory call.
func WithTimeout(d time.Duration) SCIMOption {
	return func(s *scimSettings) {
		s.timeout = d
	}
}

// WithHTTPClient swaps the underlying HTTP client, used in tests. Headers,
// credentials and timeout still apply on top of it.
func WithHTTPClient(hc *http.Client) SCIMOption {
	return func(s *scimSettings) {
		s.httpClient = hc
	}
}

// NewSCIMClient creates a directory client for the given base URL. The token
// is sent as a bearer credential on every request.
func NewSCIMClient(baseURL, token string, opts ...SCIMOption) *SCIMClient {
	settings := scimSettings{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&settings)
	}

	rc := resty.New()
	if settings.httpClient != nil {
		rc = resty.NewWithClient(settings.httpClient)
	}
	rc.SetBaseURL(baseURL).
		SetHeader("Accept", "application/scim+json").
		SetTimeout(settings.timeout)
	if token != "" {
		rc.SetAuthToken(token)
	}

	return &SCIMClient{client: rc}
}

type scimMember struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

type scimGroup struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Description string       `json:"description"`
	URN         string       `json:"urn"`
	Members     []scimMember `json:"members"`
}

type scimName struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

type scimEmail struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

type scimUser struct {
	ID     string      `json:"id"`
	Name   scimName    `json:"name"`
	Emails []scimEmail `json:"emails"`
}

type scimListResponse struct {
	TotalResults int         `json:"totalResults"`
	Resources    []scimGroup `json:"Resources"`
}

// GetGroup fetches a group by its directory id.
func (c *SCIMClient) GetGroup(ctx context.Context, externalID string) (*Group, error) {
	var g scimGroup
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&g).
		Get("/Groups/" + externalID)
	if err != nil {
		return nil, fmt.Errorf("fetching group %s: %w", externalID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrGroupNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching group %s: directory returned %d", externalID, resp.StatusCode())
	}

	return groupFromSCIM(&g), nil
}

// FindGroupByURN looks up a group by its correlation URN using a SCIM filter
// query. An empty result set maps to ErrGroupNotFound.
func (c *SCIMClient) FindGroupByURN(ctx context.Context, urn string) (*Group, error) {
	var list scimListResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("filter", fmt.Sprintf("urn eq %q", urn)).
		SetResult(&list).
		Get("/Groups")
	if err != nil {
		return nil, fmt.Errorf("finding group by urn %s: %w", urn, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("finding group by urn %s: directory returned %d", urn, resp.StatusCode())
	}
	if list.TotalResults == 0 || len(list.Resources) == 0 {
		return nil, ErrGroupNotFound
	}

	return groupFromSCIM(&list.Resources[0]), nil
}

// GetMemberProfile fetches a member profile by its directory id.
func (c *SCIMClient) GetMemberProfile(ctx context.Context, externalMemberID string) (*Profile, error) {
	var u scimUser
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&u).
		Get("/Users/" + externalMemberID)
	if err != nil {
		return nil, fmt.Errorf("fetching member profile %s: %w", externalMemberID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrProfileNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching member profile %s: directory returned %d", externalMemberID, resp.StatusCode())
	}

	p := &Profile{
		ExternalID: u.ID,
		GivenName:  u.Name.GivenName,
		FamilyName: u.Name.FamilyName,
	}
	for _, e := range u.Emails {
		if e.Primary || p.Email == "" {
			p.Email = e.Value
		}
	}

	return p, nil
}

// CheckConnectivity calls the directory's service provider configuration
// endpoint. Used by the health handler.
func (c *SCIMClient) CheckConnectivity(ctx context.Context) ConnectivityStatus {
	resp, err := c.client.R().SetContext(ctx).Get("/ServiceProviderConfig")
	if err != nil {
		return ConnectivityStatus{Connected: false, Detail: err.Error()}
	}
	if resp.IsError() {
		return ConnectivityStatus{Connected: false, Detail: fmt.Sprintf("directory returned %d", resp.StatusCode())}
	}
	return ConnectivityStatus{Connected: true}
}

func groupFromSCIM(g *scimGroup) *Group {
	members := make([]Member, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, Member{ExternalID: m.Value, DisplayName: m.Display})
	}
	return &Group{
		ExternalID:  g.ID,
		DisplayName: g.DisplayName,
		Description: g.Description,
		URN:         g.URN,
		Members:     members,
	}
}
