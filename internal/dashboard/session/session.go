// Package session stores the API access token in an HMAC-signed cookie.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultCookieName = "teamhub_session"

var (
	// ErrInvalid is returned for cookies that fail signature or format checks.
	ErrInvalid = errors.New("session: invalid cookie")
	// ErrExpired is returned once the embedded expiry has passed.
	ErrExpired = errors.New("session: expired")
)

// Manager signs and verifies session cookies.
type Manager struct {
	secret []byte
	name   string
	secure bool
	now    func() time.Time
}

// New constructs a Manager. The secret must be at least 16 bytes.
func New(secret, cookieName string, secure bool) (Manager, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 16 {
		return Manager{}, errors.New("session secret must be at least 16 characters")
	}
	if strings.TrimSpace(cookieName) == "" {
		cookieName = defaultCookieName
	}
	return Manager{secret: []byte(secret), name: cookieName, secure: secure, now: time.Now}, nil
}

// CookieName returns the configured cookie name.
func (m Manager) CookieName() string {
	return m.name
}

// MakeCookie wraps token in a signed cookie valid for ttl.
func (m Manager) MakeCookie(token string, ttl time.Duration) (*http.Cookie, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("session token is empty")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	expires := m.now().Add(ttl)
	payload := base64.RawURLEncoding.EncodeToString([]byte(token)) + "." + strconv.FormatInt(expires.Unix(), 10)
	return &http.Cookie{
		Name:     m.name,
		Value:    payload + "." + m.sign(payload),
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// ExpireCookie returns a cookie that clears the session.
func (m Manager) ExpireCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenFromRequest returns the access token stored in the request's session cookie.
// A missing cookie yields http.ErrNoCookie.
func (m Manager) TokenFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return "", err
	}
	return m.decode(cookie.Value)
}

func (m Manager) decode(value string) (string, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return "", ErrInvalid
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(m.sign(payload))) {
		return "", ErrInvalid
	}
	expiresUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", ErrInvalid
	}
	if m.now().After(time.Unix(expiresUnix, 0)) {
		return "", ErrExpired
	}
	token, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalid
	}
	return string(token), nil
}

func (m Manager) sign(payload string) string {
	hasher := hmac.New(sha256.New, m.secret)
	hasher.Write([]byte(payload))
	return hex.EncodeToString(hasher.Sum(nil))
}

// SignOut clears the session on one response.
type SignOut struct {
	Manager Manager
	Writer  http.ResponseWriter
}

// SignOut expires the session cookie.
func (s SignOut) SignOut(context.Context) error {
	if s.Writer == nil {
		return errors.New("session: no response to clear")
	}
	http.SetCookie(s.Writer, s.Manager.ExpireCookie())
	return nil
}
