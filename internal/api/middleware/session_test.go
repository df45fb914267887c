package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/resreg/resreg/internal/identity"
	"github.com/resreg/resreg/internal/session"
	"github.com/resreg/resreg/internal/token"
	"github.com/resreg/resreg/internal/user"
)

// fakeResolver serves identities from a map keyed by session key.
type fakeResolver struct {
	identities map[string]*identity.SessionIdentity
	currentErr error
}

func (r *fakeResolver) Resolve(_ context.Context, _ identity.Principal) (*identity.SessionIdentity, error) {
	return nil, identity.ErrNotAuthenticated
}

func (r *fakeResolver) Current(_ context.Context, sessionKey string) (*identity.SessionIdentity, error) {
	if r.currentErr != nil {
		return nil, r.currentErr
	}
	si, ok := r.identities[sessionKey]
	if !ok {
		return nil, identity.ErrNotAuthenticated
	}
	return si, nil
}

func (r *fakeResolver) Refresh(_ context.Context, _ string, si *identity.SessionIdentity) (*identity.SessionIdentity, error) {
	return si, nil
}

func (r *fakeResolver) Persist(_ context.Context, _ string, _ *identity.SessionIdentity) error {
	return nil
}

func (r *fakeResolver) Clear(_ context.Context, _ string) error { return nil }

type stubTokenRepo struct {
	tokens []token.Token
}

func (r *stubTokenRepo) Create(_ context.Context, _ *token.Token) error { return nil }

func (r *stubTokenRepo) FindByPrefix(_ context.Context, prefix string) ([]token.Token, error) {
	var out []token.Token
	for _, t := range r.tokens {
		if t.Prefix == prefix {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *stubTokenRepo) ListByUser(_ context.Context, _ uuid.UUID) ([]token.Token, error) {
	return nil, nil
}

func (r *stubTokenRepo) Revoke(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }

type stubUserRepo struct {
	u *user.User
}

func (r *stubUserRepo) UpsertFromProfile(_ context.Context, u *user.User, _ string) (*user.User, error) {
	return u, nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	if r.u != nil && r.u.ID == id {
		return r.u, nil
	}
	return nil, user.ErrUserNotFound
}

func (r *stubUserRepo) GetByDirectoryID(_ context.Context, _ string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}

func (r *stubUserRepo) GetBySessionID(_ context.Context, _ string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context) ([]user.User, error) { return nil, nil }

func (r *stubUserRepo) SetFavorites(_ context.Context, _ uuid.UUID, _ []uuid.UUID) error {
	return nil
}

func (r *stubUserRepo) TouchRecent(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	return nil
}

func testCodec() *session.CookieCodec {
	return session.NewCookieCodec("test_session", []byte("test-secret"), time.Hour, false)
}

// captureIdentity wraps a no-op handler and records the identity it saw.
func captureIdentity(captured **identity.SessionIdentity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error.Code
}

func TestSession_ValidCookie(t *testing.T) {
	codec := testCodec()
	key := session.NewSessionKey()
	want := &identity.SessionIdentity{SessionID: "sess-1", Email: "ada@example.org"}
	resolver := &fakeResolver{identities: map[string]*identity.SessionIdentity{key: want}}
	tokens := token.NewService(&stubTokenRepo{}, &stubUserRepo{}, bcrypt.MinCost)

	var captured *identity.SessionIdentity
	handler := Session(resolver, codec, tokens)(captureIdentity(&captured))

	cookie, err := codec.Issue(key)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/projects", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "sess-1", captured.SessionID)
}

func TestSession_NoCredentials(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*identity.SessionIdentity{}}
	tokens := token.NewService(&stubTokenRepo{}, &stubUserRepo{}, bcrypt.MinCost)
	handler := Session(resolver, testCodec(), tokens)(http.NotFoundHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w.Body.Bytes()))
}

func TestSession_TamperedCookie(t *testing.T) {
	codec := testCodec()
	resolver := &fakeResolver{identities: map[string]*identity.SessionIdentity{}}
	tokens := token.NewService(&stubTokenRepo{}, &stubUserRepo{}, bcrypt.MinCost)
	handler := Session(resolver, codec, tokens)(http.NotFoundHandler())

	cookie, err := codec.Issue(session.NewSessionKey())
	require.NoError(t, err)
	cookie.Value += "x"

	r := httptest.NewRequest(http.MethodGet, "/projects", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_StoreUnavailable(t *testing.T) {
	codec := testCodec()
	resolver := &fakeResolver{currentErr: identity.ErrSessionUnavailable}
	tokens := token.NewService(&stubTokenRepo{}, &stubUserRepo{}, bcrypt.MinCost)
	handler := Session(resolver, codec, tokens)(http.NotFoundHandler())

	cookie, err := codec.Issue(session.NewSessionKey())
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/projects", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_UNAVAILABLE", errorCode(t, w.Body.Bytes()))
}

func TestSession_APIKey(t *testing.T) {
	owner := &user.User{ID: uuid.New(), Email: "ci@example.org", DisplayName: "CI Bot"}
	tokens := token.NewService(&stubTokenRepo{}, &stubUserRepo{u: owner}, bcrypt.MinCost)

	raw, prefix, hash, err := tokens.Generate()
	require.NoError(t, err)
	repo := &stubTokenRepo{tokens: []token.Token{{ID: uuid.New(), UserID: owner.ID, Prefix: prefix, Hash: hash}}}
	tokens = token.NewService(repo, &stubUserRepo{u: owner}, bcrypt.MinCost)

	resolver := &fakeResolver{identities: map[string]*identity.SessionIdentity{}}
	var captured *identity.SessionIdentity
	handler := Session(resolver, testCodec(), tokens)(captureIdentity(&captured))

	r := httptest.NewRequest(http.MethodGet, "/projects", nil)
	r.Header.Set("X-API-Key", raw)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	require.NotNil(t, captured.User)
	assert.Equal(t, owner.ID, captured.User.ID)
}

func TestSession_InvalidAPIKey(t *testing.T) {
	tokens := token.NewService(&stubTokenRepo{}, &stubUserRepo{}, bcrypt.MinCost)
	resolver := &fakeResolver{identities: map[string]*identity.SessionIdentity{}}
	handler := Session(resolver, testCodec(), tokens)(http.NotFoundHandler())

	r := httptest.NewRequest(http.MethodGet, "/projects", nil)
	r.Header.Set("X-API-Key", "rr_invalid-token-value")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
