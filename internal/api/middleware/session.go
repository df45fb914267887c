package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/resreg/resreg/internal/api/response"
	"github.com/resreg/resreg/internal/identity"
	"github.com/resreg/resreg/internal/session"
	"github.com/resreg/resreg/internal/token"
)

const identityKey contextKey = "identity"
const sessionKeyKey contextKey = "sessionKey"

// Session is middleware that resolves the caller's identity, either from the
// session cookie or from an X-API-Key personal access token. Requests with
// neither, or with a session the store cannot produce, get 401.
func Session(resolver identity.Resolver, cookies *session.CookieCodec, tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			if rawToken := r.Header.Get("X-API-Key"); rawToken != "" {
				u, err := tokens.Authenticate(r.Context(), rawToken)
				if err != nil {
					if errors.Is(err, token.ErrInvalidToken) {
						response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or revoked API token", requestID)
						return
					}
					slog.Error("token authentication failed", "error", err)
					response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
					return
				}

				si := &identity.SessionIdentity{
					SessionID:   "",
					Email:       u.Email,
					DisplayName: u.DisplayName,
					User:        u,
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), si, "")))
				return
			}

			sessionKey, err := cookies.SessionKey(r)
			if err != nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid session cookie", requestID)
				return
			}

			si, err := resolver.Current(r.Context(), sessionKey)
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrNotAuthenticated):
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
				case errors.Is(err, identity.ErrSessionUnavailable):
					slog.Error("session store unavailable", "error", err)
					response.Err(w, http.StatusUnauthorized, "SESSION_UNAVAILABLE", "Session unavailable, re-authenticate", requestID)
				default:
					slog.Error("identity resolution failed", "error", err)
					response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), si, sessionKey)))
		})
	}
}

// WithIdentity stores the identity and session key on the context. Handler
// tests use it to simulate an authenticated request.
func WithIdentity(ctx context.Context, si *identity.SessionIdentity, sessionKey string) context.Context {
	ctx = context.WithValue(ctx, identityKey, si)
	return context.WithValue(ctx, sessionKeyKey, sessionKey)
}

// GetIdentity retrieves the authenticated identity from the request context.
func GetIdentity(ctx context.Context) *identity.SessionIdentity {
	if si, ok := ctx.Value(identityKey).(*identity.SessionIdentity); ok {
		return si
	}
	return nil
}

// GetSessionKey retrieves the session key from the request context. Empty for
// token-authenticated requests.
func GetSessionKey(ctx context.Context) string {
	if key, ok := ctx.Value(sessionKeyKey).(string); ok {
		return key
	}
	return ""
}
