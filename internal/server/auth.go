package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultJWTSecret signs dev tokens when no secret is configured.
const DefaultJWTSecret = "smart_sprint_secret_key"

// TokenTTL is the lifetime of issued tokens.
const TokenTTL = 24 * time.Hour

// Account is a login known to the dev backend. PasswordHash is the hex
// SHA-256 of the password.
type Account struct {
	PasswordHash string
	Role         string
}

type AuthConfig struct {
	JWTSecret string
	Accounts  map[string]Account
	Logger    *slog.Logger
}

// HashPassword returns the hex SHA-256 digest stored in Account.PasswordHash.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// DefaultAccounts are admin/admin and user/user.
func DefaultAccounts() map[string]Account {
	return map[string]Account{
		"admin": {PasswordHash: HashPassword("admin"), Role: "admin"},
		"user":  {PasswordHash: HashPassword("user"), Role: "user"},
	}
}

func (c AuthConfig) secret() string {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return DefaultJWTSecret
	}
	return c.JWTSecret
}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c AuthConfig) verify(username, password string) (Account, bool) {
	acct, ok := c.Accounts[username]
	if !ok {
		return Account{}, false
	}
	got := HashPassword(password)
	return acct, subtle.ConstantTimeCompare([]byte(got), []byte(acct.PasswordHash)) == 1
}

type Principal struct {
	Username string
	Role     string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

func signToken(secret, username, role string, now time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: username,
		Role:     role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateJWT(token, secret string) (Principal, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Username == "" {
		return Principal{}, errors.New("username claim required")
	}
	return Principal{Username: claims.Username, Role: claims.Role}, nil
}

func bearerToken(authz string) string {
	parts := strings.Fields(authz)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return strings.TrimSpace(authz)
}

// newAuthMiddleware requires a valid bearer token on every API route except
// login, health and the API docs.
func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "login"):        true,
		path.Join(basePath, "health"):       true,
		path.Join(basePath, "openapi.json"): true,
		path.Join(basePath, "docs"):         true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath) || open[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "Token is missing"))
				return
			}
			principal, err := authenticateJWT(bearerToken(authz), cfg.secret())
			if err != nil {
				cfg.logger().Debug("rejected token", "path", req.URL.Path, "error", err)
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "Token is invalid"))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = jsonEncode(w, err)
}
