// Package session holds the cashier's single live session: the bearer token,
// the cashier identity and whether the realtime connection accepted it.
//
// Tokens are opaque to the client. When a token happens to be a JWT its
// registered claims are read, without verification, to learn the subject and
// expiry; the service remains the only authority on validity.
package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// ErrNoToken is returned by Init when the token is empty.
var ErrNoToken = errors.New("session: empty token")

// Session is the live cashier session.
type Session struct {
	// ID correlates journal entries of one session. UUIDv7, so sessions sort
	// by start time.
	ID            string
	Token         string
	Cashier       protocol.Cashier
	Authenticated bool
	StartedAt     time.Time
	// ExpiresAt is zero for opaque tokens.
	ExpiresAt time.Time
}

// Store owns the Session. It is accessed only from the event loop.
type Store struct {
	now     func() time.Time
	current *Session
}

// NewStore creates an empty store. now defaults to time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now}
}

// Init starts a session, replacing any existing one. A cashier without an id
// takes the token's subject claim.
func (s *Store) Init(token string, cashier protocol.Cashier) (Session, error) {
	if token == "" {
		return Session{}, ErrNoToken
	}
	if s.current != nil {
		slog.Warn("replacing live session", "session", s.current.ID)
	}

	sess := Session{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Token:     token,
		Cashier:   cashier,
		StartedAt: s.now(),
	}

	if claims, ok := parseClaims(token); ok {
		if sess.Cashier.ID == "" {
			sess.Cashier.ID = claims.Subject
		}
		if claims.ExpiresAt != nil {
			sess.ExpiresAt = claims.ExpiresAt.Time
		}
	}

	s.current = &sess
	slog.Info("session started",
		"session", sess.ID,
		"cashier", sess.Cashier.ID,
	)
	return sess, nil
}

// Current returns a copy of the live session.
func (s *Store) Current() (Session, bool) {
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Active reports whether a session exists.
func (s *Store) Active() bool {
	return s.current != nil
}

// Token returns the live token, or "".
func (s *Store) Token() string {
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// ID returns the live session id, or "".
func (s *Store) ID() string {
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// Authenticated reports whether the connection accepted the token.
func (s *Store) Authenticated() bool {
	return s.current != nil && s.current.Authenticated
}

// MarkAuthenticated records the outcome of an authentication attempt.
// No-op without a session.
func (s *Store) MarkAuthenticated(ok bool) {
	if s.current == nil {
		return
	}
	s.current.Authenticated = ok
}

// Expired reports whether the token carries an expiry that has passed.
func (s *Store) Expired() bool {
	if s.current == nil || s.current.ExpiresAt.IsZero() {
		return false
	}
	return !s.now().Before(s.current.ExpiresAt)
}

// Teardown destroys the session.
func (s *Store) Teardown() {
	if s.current == nil {
		return
	}
	slog.Info("session ended", "session", s.current.ID)
	s.current = nil
}

func parseClaims(token string) (*jwt.RegisteredClaims, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
