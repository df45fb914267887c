package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/resreg/resreg/internal/api/middleware"
	"github.com/resreg/resreg/internal/api/response"
	"github.com/resreg/resreg/internal/feature"
	"github.com/resreg/resreg/internal/identity"
	"github.com/resreg/resreg/internal/reconcile"
	"github.com/resreg/resreg/internal/session"
)

// SessionHandler handles login, session introspection and logout.
type SessionHandler struct {
	flags         feature.Source
	gatewaySecret []byte
	resolver      identity.Resolver
	reconciler    *reconcile.Reconciler
	cookies       *session.CookieCodec
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	flags feature.Source,
	gatewaySecret []byte,
	resolver identity.Resolver,
	reconciler *reconcile.Reconciler,
	cookies *session.CookieCodec,
) *SessionHandler {
	return &SessionHandler{
		flags:         flags,
		gatewaySecret: gatewaySecret,
		resolver:      resolver,
		reconciler:    reconciler,
		cookies:       cookies,
	}
}

type collaborationSummary struct {
	Organization string `json:"organization"`
	Group        string `json:"group"`
	RoleGroups   int    `json:"roleGroups"`
}

type identityResponse struct {
	SessionID      string                 `json:"sessionId"`
	Email          string                 `json:"email"`
	DisplayName    string                 `json:"displayName"`
	UserID         *string                `json:"userId,omitempty"`
	Tier           *string                `json:"tier,omitempty"`
	Collaborations []collaborationSummary `json:"collaborations"`
}

// Login handles POST /auth/login. In federated mode it expects the upstream
// gateway's identity assertion as a bearer credential; in bypass mode no
// credential is needed and the fixed development identity is returned.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var principal identity.Principal
	if h.flags.FederatedEnabled() {
		raw := bearerToken(r)
		if raw == "" {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Identity assertion is required", requestID)
			return
		}

		claims, err := h.parseAssertion(raw)
		if err != nil {
			slog.Info("rejected identity assertion", "error", err)
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid identity assertion", requestID)
			return
		}
		principal = identity.Principal{Claims: claims}
	}

	si, err := h.resolver.Resolve(r.Context(), principal)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidPrincipal) {
			response.Err(w, http.StatusBadRequest, "INVALID_PRINCIPAL", "A required claim is missing", requestID)
			return
		}
		slog.Error("identity resolution failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", requestID)
		return
	}

	if err := h.reconciler.Reconcile(r.Context(), si); err != nil {
		slog.Error("collaboration reconciliation failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", requestID)
		return
	}

	sessionKey := session.NewSessionKey()
	if err := h.resolver.Persist(r.Context(), sessionKey, si); err != nil {
		slog.Error("persisting session identity failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", requestID)
		return
	}

	// Attach the reconciled local account so role checks work immediately.
	si, err = h.resolver.Refresh(r.Context(), sessionKey, si)
	if err != nil {
		slog.Error("refreshing session identity failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", requestID)
		return
	}

	cookie, err := h.cookies.Issue(sessionKey)
	if err != nil {
		slog.Error("issuing session cookie failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", requestID)
		return
	}
	http.SetCookie(w, cookie)

	response.Success(w, http.StatusOK, identityToResponse(si), requestID)
}

// Current handles GET /auth/session.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	si := middleware.GetIdentity(r.Context())
	if si == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
		return
	}

	response.Success(w, http.StatusOK, identityToResponse(si), requestID)
}

// Logout handles DELETE /auth/session. Idempotent: logging out without a
// session still succeeds.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	sessionKey, err := h.cookies.SessionKey(r)
	if err == nil && sessionKey != "" {
		if err := h.resolver.Clear(r.Context(), sessionKey); err != nil {
			slog.Error("clearing session failed", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Logout failed", requestID)
			return
		}
	}

	http.SetCookie(w, h.cookies.Expire())
	response.NoContent(w)
}

func (h *SessionHandler) parseAssertion(raw string) (map[string]any, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.gatewaySecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}

	return claims, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func identityToResponse(si *identity.SessionIdentity) identityResponse {
	resp := identityResponse{
		SessionID:      si.SessionID,
		Email:          si.Email,
		DisplayName:    si.DisplayName,
		Collaborations: make([]collaborationSummary, 0, len(si.Collaborations)),
	}

	if si.User != nil {
		id := si.User.ID.String()
		tier := si.User.Tier
		resp.UserID = &id
		resp.Tier = &tier
	}

	for _, c := range si.Collaborations {
		resp.Collaborations = append(resp.Collaborations, collaborationSummary{
			Organization: c.Organization,
			Group:        c.Group.DisplayName,
			RoleGroups:   len(c.Groups),
		})
	}

	return resp
}
