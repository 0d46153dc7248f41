package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsprint/internal/clock"
	"smartsprint/internal/domain"
	"smartsprint/internal/session"
)

type fakeBackend struct {
	loginResp domain.LoginResponse
	loginErr  error
	probeErr  error
	probes    []string
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (domain.LoginResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeBackend) Probe(_ context.Context, token string) error {
	f.probes = append(f.probes, token)
	return f.probeErr
}

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, username, role string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"role":     role,
		"exp":      exp.Unix(),
	})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func newManager(b *fakeBackend) (*session.Manager, *session.MemoryStore, *clock.FakeClock) {
	store := session.NewMemoryStore()
	m := session.New(store, b)
	fc := clock.Fake(start)
	m.Clock = fc
	return m, store, fc
}

func TestLoginPersistsTokenAndIdentity(t *testing.T) {
	token := signedToken(t, "admin", "admin", start.Add(24*time.Hour))
	b := &fakeBackend{loginResp: domain.LoginResponse{Token: token, Username: "admin", Role: "admin"}}
	m, store, fc := newManager(b)

	require.NoError(t, m.Login(context.Background(), "admin", "pw"))
	assert.True(t, m.Authenticated())
	assert.Equal(t, token, m.Token())
	stored, err := store.Get(context.Background(), session.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, token, stored)

	fc.Advance(time.Hour)
	info := m.Info()
	assert.Equal(t, "admin", info.Username)
	assert.Equal(t, 23*time.Hour, info.ExpiresIn)
}

func TestLoginFailureKeepsPriorToken(t *testing.T) {
	b := &fakeBackend{loginErr: &domain.AuthError{Message: "Invalid username or password"}}
	m, store, _ := newManager(b)
	require.NoError(t, store.Set(context.Background(), session.TokenKey, "old"))

	err := m.Login(context.Background(), "admin", "bad")
	require.True(t, domain.IsAuth(err))
	assert.False(t, m.Authenticated())
	stored, err := store.Get(context.Background(), session.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "old", stored)
}

func TestLoginRequiresCredentials(t *testing.T) {
	m, _, _ := newManager(&fakeBackend{})
	require.True(t, domain.IsValidation(m.Login(context.Background(), " ", "pw")))
	require.True(t, domain.IsValidation(m.Login(context.Background(), "admin", "")))
}

func TestRestoreProbesOnce(t *testing.T) {
	token := signedToken(t, "lead", "user", start.Add(time.Hour))
	b := &fakeBackend{}
	m, store, _ := newManager(b)
	require.NoError(t, store.Set(context.Background(), session.TokenKey, token))

	ok, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{token}, b.probes)
	user, authed := m.User()
	assert.True(t, authed)
	assert.Equal(t, domain.User{Username: "lead", Role: "user"}, user)
}

func TestRestoreWithoutTokenSkipsProbe(t *testing.T) {
	b := &fakeBackend{}
	m, _, _ := newManager(b)
	ok, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, b.probes)
}

func TestRestoreFailureClearsToken(t *testing.T) {
	for name, probeErr := range map[string]error{
		"rejected": &domain.AuthError{Message: "Invalid token"},
		"offline":  &domain.NetworkError{Op: "GET /api/tickets", Err: errors.New("connection refused")},
	} {
		t.Run(name, func(t *testing.T) {
			b := &fakeBackend{probeErr: probeErr}
			m, store, _ := newManager(b)
			require.NoError(t, store.Set(context.Background(), session.TokenKey, "opaque"))

			ok, err := m.Restore(context.Background())
			assert.False(t, ok)
			assert.Error(t, err)
			assert.False(t, m.Authenticated())
			_, err = store.Get(context.Background(), session.TokenKey)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestRestoreOpaqueTokenFallsBackToDefaultUser(t *testing.T) {
	b := &fakeBackend{}
	m, store, _ := newManager(b)
	require.NoError(t, store.Set(context.Background(), session.TokenKey, "not-a-jwt"))
	ok, err := m.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	user, _ := m.User()
	assert.Equal(t, domain.User{Username: "user", Role: "user"}, user)
}

func TestExpireAndLogout(t *testing.T) {
	token := signedToken(t, "admin", "admin", start.Add(time.Hour))
	b := &fakeBackend{loginResp: domain.LoginResponse{Token: token, Username: "admin", Role: "admin"}}
	m, store, _ := newManager(b)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, "admin", "pw"))
	m.Expire()
	assert.False(t, m.Authenticated())
	assert.Empty(t, m.Token())
	assert.Equal(t, session.ExpiredNotice, m.Notice())
	_, err := store.Get(ctx, session.TokenKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, m.Login(ctx, "admin", "pw"))
	assert.Empty(t, m.Notice())
	m.Logout(ctx)
	assert.False(t, m.Authenticated())
	_, err = store.Get(ctx, session.TokenKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
