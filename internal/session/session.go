package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"smartsprint/internal/clock"
	"smartsprint/internal/domain"
	"smartsprint/internal/events"
)

const ExpiredNotice = "Your session has expired. Please log in again."

// Backend is the slice of the API the session needs.
type Backend interface {
	Login(ctx context.Context, username, password string) (domain.LoginResponse, error)
	Probe(ctx context.Context, token string) error
}

// Manager owns the bearer token and the authenticated flag. The token is
// persisted in Store under TokenKey so a restart can restore the session.
type Manager struct {
	Clock  clock.Clock
	Logger *slog.Logger
	Events events.Writer

	store   Store
	backend Backend

	mu            sync.RWMutex
	token         string
	authenticated bool
	user          domain.User
	expiresAt     time.Time
	notice        string
}

func New(store Store, backend Backend) *Manager {
	return &Manager{
		Clock:   clock.Real(),
		store:   store,
		backend: backend,
	}
}

// Info is a snapshot of the session for display.
type Info struct {
	Authenticated bool          `json:"authenticated"`
	Username      string        `json:"username,omitempty"`
	Role          string        `json:"role,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	ExpiresIn     time.Duration `json:"expires_in,omitempty"`
	Notice        string        `json:"notice,omitempty"`
}

// Login exchanges credentials for a token. On failure any prior token is left untouched.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return &domain.ValidationError{Reason: "username and password are required"}
	}
	resp, err := m.backend.Login(ctx, username, password)
	if err != nil {
		m.logger().Info("login failed", "username", username, "error", err)
		return err
	}
	if err := m.store.Set(ctx, TokenKey, resp.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	claims := decodeClaims(resp.Token)
	user := domain.User{Username: resp.Username, Role: resp.Role}
	if user.Username == "" {
		user.Username = claims.username
	}
	if user.Role == "" {
		user.Role = claims.role
	}

	m.mu.Lock()
	m.token = resp.Token
	m.authenticated = true
	m.user = user
	m.expiresAt = claims.expiresAt
	m.notice = ""
	m.mu.Unlock()

	m.logger().Info("logged in", "username", user.Username, "role", user.Role)
	m.record(ctx, events.TypeLogin, user.Username, events.EventPayload{"role": user.Role})
	return nil
}

// Restore re-enters a session from the stored token after a restart. It issues
// exactly one probe; any failure clears the stored token.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	token, err := m.store.Get(ctx, TokenKey)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && token == "") {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read token: %w", err)
	}
	if err := m.backend.Probe(ctx, token); err != nil {
		m.logger().Info("stored token rejected", "error", err)
		m.clear(context.WithoutCancel(ctx))
		return false, err
	}
	claims := decodeClaims(token)
	user := domain.User{Username: claims.username, Role: claims.role}
	if user.Username == "" {
		user = domain.User{Username: "user", Role: "user"}
	}

	m.mu.Lock()
	m.token = token
	m.authenticated = true
	m.user = user
	m.expiresAt = claims.expiresAt
	m.notice = ""
	m.mu.Unlock()
	m.logger().Debug("session restored", "username", user.Username)
	return true, nil
}

// Logout drops the token locally. The backend is not contacted.
func (m *Manager) Logout(ctx context.Context) {
	user, _ := m.User()
	m.clear(ctx)
	m.record(ctx, events.TypeLogout, user.Username, nil)
}

// Expire is the 401 path: logout plus a notice for the next screen.
func (m *Manager) Expire() {
	ctx := context.Background()
	user, wasAuthenticated := m.User()
	m.clear(ctx)
	m.mu.Lock()
	m.notice = ExpiredNotice
	m.mu.Unlock()
	if wasAuthenticated {
		m.logger().Warn("session expired", "username", user.Username)
		m.record(ctx, events.TypeExpired, user.Username, nil)
	}
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated
}

func (m *Manager) User() (domain.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.authenticated
}

// Notice returns the pending session notice, if any.
func (m *Manager) Notice() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notice
}

func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := Info{Authenticated: m.authenticated, Notice: m.notice}
	if m.authenticated {
		info.Username = m.user.Username
		info.Role = m.user.Role
		if !m.expiresAt.IsZero() {
			exp := m.expiresAt
			info.ExpiresAt = &exp
			if left := exp.Sub(m.Clock.Now()); left > 0 {
				info.ExpiresIn = left.Truncate(time.Second)
			}
		}
	}
	return info
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	m.token = ""
	m.authenticated = false
	m.user = domain.User{}
	m.expiresAt = time.Time{}
	m.mu.Unlock()
	if err := m.store.Delete(ctx, TokenKey); err != nil {
		m.logger().Error("clear stored token", "error", err)
	}
}

func (m *Manager) record(ctx context.Context, evtType, actor string, payload events.EventPayload) {
	w := m.Events
	if w.Now == nil && m.Clock != nil {
		w.Now = m.Clock.Now
	}
	if err := w.Append(ctx, evtType, "session", "", actor, payload); err != nil {
		m.logger().Error("record session event", "type", evtType, "error", err)
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

type tokenClaims struct {
	username  string
	role      string
	expiresAt time.Time
}

// decodeClaims reads identity from the token without verifying it; the
// backend is the only party that can verify.
func decodeClaims(token string) tokenClaims {
	var out tokenClaims
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return out
	}
	if v, ok := claims["username"].(string); ok {
		out.username = v
	} else if sub, err := claims.GetSubject(); err == nil {
		out.username = sub
	}
	if v, ok := claims["role"].(string); ok {
		out.role = v
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.expiresAt = exp.Time
	}
	return out
}
