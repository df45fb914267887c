package identity

import (
	"fmt"
	"strings"
)

// Claim names expected on the gateway's identity assertion.
const (
	ClaimSessionID    = "sub"
	ClaimName         = "name"
	ClaimGivenName    = "given_name"
	ClaimFamilyName   = "family_name"
	ClaimEmail        = "email"
	ClaimEntitlements = "entitlements"
)

// Claims is the typed view of a principal's claims. SessionID is the only
// hard-required field; everything else degrades to empty values.
type Claims struct {
	SessionID    string
	DisplayName  string
	GivenName    string
	FamilyName   string
	Email        string
	Entitlements []string
}

// ExtractClaims maps a principal's claim bag into Claims. Returns
// ErrInvalidPrincipal when the external-session id claim is absent or empty.
func ExtractClaims(p Principal) (Claims, error) {
	c := Claims{
		SessionID:    stringClaim(p, ClaimSessionID),
		DisplayName:  stringClaim(p, ClaimName),
		GivenName:    stringClaim(p, ClaimGivenName),
		FamilyName:   stringClaim(p, ClaimFamilyName),
		Email:        stringClaim(p, ClaimEmail),
		Entitlements: stringSliceClaim(p, ClaimEntitlements),
	}

	if c.SessionID == "" {
		return Claims{}, fmt.Errorf("%w: missing %q claim", ErrInvalidPrincipal, ClaimSessionID)
	}

	if c.DisplayName == "" {
		c.DisplayName = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}

	return c, nil
}

func stringClaim(p Principal, name string) string {
	v, ok := p.Claims[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// stringSliceClaim accepts both a JSON array and a single string value; some
// gateways flatten single-element claim lists.
func stringSliceClaim(p Principal, name string) []string {
	v, ok := p.Claims[name]
	if !ok {
		return nil
	}

	switch vv := v.(type) {
	case string:
		return []string{vv}
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	return nil
}
