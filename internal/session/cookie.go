package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidCookie is returned when a session cookie fails verification.
var ErrInvalidCookie = errors.New("invalid session cookie")

// CookieCodec issues and verifies the browser cookie carrying the session
// key. The cookie value is an HMAC-signed token holding only the key — the
// identity itself stays server-side.
type CookieCodec struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewCookieCodec creates a CookieCodec.
func NewCookieCodec(name string, secret []byte, ttl time.Duration, secure bool) *CookieCodec {
	return &CookieCodec{name: name, secret: secret, ttl: ttl, secure: secure}
}

// NewSessionKey generates a fresh opaque session key.
func NewSessionKey() string {
	return uuid.New().String()
}

// Issue builds the Set-Cookie value for a session key.
func (c *CookieCodec) Issue(sessionKey string) (*http.Cookie, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sessionKey,
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("signing session cookie: %w", err)
	}

	return &http.Cookie{
		Name:     c.name,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(c.ttl),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Expire builds a cookie that clears the session on the browser.
func (c *CookieCodec) Expire() *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionKey extracts and verifies the session key from the request's cookie.
// Returns empty string (no error) when the cookie is absent, and
// ErrInvalidCookie when it is present but fails verification.
func (c *CookieCodec) SessionKey(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", nil
	}

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidCookie
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", ErrInvalidCookie
	}

	return sid, nil
}
