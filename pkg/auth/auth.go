// Package auth exchanges a platform token for an SDK token and serves it to
// the transport as the bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

const pathLogin = "/Auth/funtico-auth"

var (
	// ErrEmptyToken is returned when login is attempted without a platform
	// token or the backend answers without an SDK token.
	ErrEmptyToken = errors.New("auth: empty token")
	// ErrNotLoggedIn is returned by Require before a successful Login.
	ErrNotLoggedIn = errors.New("auth: not logged in")
	// ErrTokenExpired is returned by Require once the SDK token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
)

// Session is the result of a login.
type Session struct {
	Token     string
	Subject   string
	ExpiresAt time.Time // zero when the token carries no expiry
}

// Authenticator holds the current SDK and platform tokens. It implements
// transport.TokenSource.
type Authenticator struct {
	http *transport.Client
	log  *log.Logger
	now  func() time.Time

	mu       sync.RWMutex
	platform string
	session  Session
}

// New creates an Authenticator that logs in through t.
func New(t *transport.Client, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Authenticator{http: t, log: logger, now: time.Now}
}

// Login exchanges the platform token for an SDK token. The platform token is
// kept for platform API calls such as identity lookups.
func (a *Authenticator) Login(ctx context.Context, platformToken string) (Session, error) {
	platformToken = strings.TrimSpace(platformToken)
	if platformToken == "" {
		return Session{}, ErrEmptyToken
	}

	resp, err := transport.PostJSON[struct {
		Token string `json:"token"`
	}](ctx, a.http, pathLogin, map[string]string{"Token": platformToken})
	if err != nil {
		return Session{}, fmt.Errorf("auth: login: %w", err)
	}
	if resp.Token == "" {
		return Session{}, fmt.Errorf("auth: login: %w", ErrEmptyToken)
	}

	s := Inspect(resp.Token)
	if s.ExpiresAt.IsZero() {
		a.log.Printf("SDK token carries no expiry")
	}

	a.mu.Lock()
	a.platform = platformToken
	a.session = s
	a.mu.Unlock()
	return s, nil
}

// Inspect reads the subject and expiry of a JWT without verifying its
// signature; the backend verifies it. Opaque tokens yield only Token.
func Inspect(token string) Session {
	s := Session{Token: token}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		s.Subject = sub
	}
	return s
}

// Token returns the SDK bearer token, or "" before login.
func (a *Authenticator) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Token
}

// PlatformToken returns the platform token given to Login.
func (a *Authenticator) PlatformToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.platform
}

// Session returns the current login.
func (a *Authenticator) Session() Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Require fails when there is no usable SDK token.
func (a *Authenticator) Require() error {
	s := a.Session()
	if s.Token == "" {
		return ErrNotLoggedIn
	}
	if !s.ExpiresAt.IsZero() && !a.now().Before(s.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// Logout forgets both tokens.
func (a *Authenticator) Logout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.platform = ""
	a.session = Session{}
}
