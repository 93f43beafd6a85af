// Package session holds the signed-in principal and its bearer token, with an
// explicit lifecycle: SignIn, SignOut, and Invalidate when the store answers 401.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonathan/resume-vault/internal/types"
	"go.uber.org/zap"
)

// StorageKey is the persistence key the session is saved under.
const StorageKey = "user"

// ErrNoSession is returned when an operation needs a session and none is active.
var ErrNoSession = errors.New("not signed in")

// Session is an active sign-in. ExpiresAt is zero when the token carries no
// readable expiry.
type Session struct {
	Token     string
	Principal types.Principal
	ExpiresAt time.Time
}

// Capabilities returns the session principal's capability set.
func (s *Session) Capabilities() types.Capabilities {
	return types.CapabilitiesOf(s.Principal)
}

// Expired reports whether the token's expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type record struct {
	Token     string     `json:"token"`
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      types.Role `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Manager owns the current session and persists it through a Persistence port.
type Manager struct {
	mu      sync.RWMutex
	store   Persistence
	current *Session
	hooks   []func(reason string)
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager creates a Manager and restores any persisted, unexpired session.
func NewManager(store Persistence, logger *zap.Logger) (*Manager, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: store, logger: logger, now: time.Now}
	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) restore() error {
	raw, ok, err := m.store.Get(StorageKey)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		m.logger.Warn("discarding unreadable session", zap.Error(err))
		return m.store.Clear(StorageKey)
	}
	p, err := types.NewPrincipal(rec.Role, rec.ID, rec.Username)
	if err != nil {
		m.logger.Warn("discarding session with invalid principal", zap.Error(err))
		return m.store.Clear(StorageKey)
	}

	s := &Session{Token: rec.Token, Principal: p}
	if rec.ExpiresAt != nil {
		s.ExpiresAt = *rec.ExpiresAt
	}
	if s.Expired(m.now()) {
		m.logger.Info("persisted session expired", zap.String("user", p.Username()))
		return m.store.Clear(StorageKey)
	}
	m.current = s
	return nil
}

// SignIn starts a session for principal with token and persists it.
func (m *Manager) SignIn(token string, principal types.Principal) (*Session, error) {
	if token == "" {
		return nil, errors.New("sign in: token is empty")
	}
	if principal == nil {
		return nil, errors.New("sign in: principal is nil")
	}

	s := &Session{Token: token, Principal: principal, ExpiresAt: tokenExpiry(token)}
	rec := record{
		Token:    token,
		ID:       principal.ID(),
		Username: principal.Username(),
		Role:     principal.Role(),
	}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt
		rec.ExpiresAt = &exp
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Set(StorageKey, string(data)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	m.current = s
	m.logger.Info("signed in", zap.String("user", principal.Username()), zap.String("role", string(principal.Role())))
	return s, nil
}

// Current returns the active session, if any.
func (m *Manager) Current() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.current != nil
}

// Token returns the bearer token of the active session.
func (m *Manager) Token() (string, error) {
	s, ok := m.Current()
	if !ok {
		return "", ErrNoSession
	}
	return s.Token, nil
}

// Principal returns the principal of the active session.
func (m *Manager) Principal() (types.Principal, error) {
	s, ok := m.Current()
	if !ok {
		return nil, ErrNoSession
	}
	return s.Principal, nil
}

// SignOut ends the session and clears persisted state.
func (m *Manager) SignOut() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	if err := m.store.Clear(StorageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Invalidate tears the session down after the store rejected token and
// notifies every OnInvalidate hook. A token that no longer belongs to the active
// session is ignored, so a late rejection cannot end a newer sign-in. It is safe
// to call with no active session.
func (m *Manager) Invalidate(token, reason string) {
	m.mu.Lock()
	if m.current == nil || m.current.Token != token {
		m.mu.Unlock()
		m.logger.Debug("ignoring rejection of a stale token", zap.String("reason", reason))
		return
	}
	m.current = nil
	if err := m.store.Clear(StorageKey); err != nil {
		m.logger.Warn("clear session after invalidation", zap.Error(err))
	}
	hooks := append([]func(string){}, m.hooks...)
	m.mu.Unlock()

	m.logger.Info("session invalidated", zap.String("reason", reason))
	for _, fn := range hooks {
		fn(reason)
	}
}

// OnInvalidate registers fn to run after Invalidate tears down a session.
func (m *Manager) OnInvalidate(fn func(reason string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// tokenExpiry reads the exp claim without verifying the signature; the store
// is the authority on validity. Opaque tokens yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
