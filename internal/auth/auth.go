// Package auth is the access control gate: bcrypt password hashing, JWT
// issuance/validation and the HTTP middleware that resolves a bearer token
// to an account and enforces the active/admin capability levels.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hydro-monitor/internal/hydroerr"
	"hydro-monitor/internal/model"
	"hydro-monitor/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Claims is the bearer-token payload: subject username plus role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and validates tokens and resolves them to accounts.
type Manager struct {
	secret []byte
	expiry time.Duration
	store  *store.Store
}

func NewManager(secret string, expiryMinutes int, st *store.Store) *Manager {
	return &Manager{
		secret: []byte(secret),
		expiry: time.Duration(expiryMinutes) * time.Minute,
		store:  st,
	}
}

// HashPassword creates a bcrypt hash from a plaintext password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// GenerateToken signs a token for the user with the configured expiry.
func (m *Manager) GenerateToken(username, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			Issuer:    "hydro-monitor",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ValidateToken parses and verifies a token string.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, hydroerr.ErrInvalidToken
	}
	return claims, nil
}

// Login verifies credentials and returns the account with a fresh token.
func (m *Manager) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	u, err := m.store.GetUserByUsername(ctx, username)
	if err != nil {
		if hydroerr.IsNotFound(err) {
			return nil, "", hydroerr.ErrBadCredentials
		}
		return nil, "", err
	}
	if !CheckPassword(u.HashedPassword, password) {
		return nil, "", hydroerr.ErrBadCredentials
	}
	token, err := m.GenerateToken(u.Username, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Resolve turns a bearer credential into the account it names, rejecting
// disabled accounts.
func (m *Manager) Resolve(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	u, err := m.store.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if hydroerr.IsNotFound(err) {
			return nil, hydroerr.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, hydroerr.ErrInactiveUser
	}
	return u, nil
}

type contextKey struct{}

// CurrentUser returns the account the middleware attached to the request.
func CurrentUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(contextKey{}).(*model.User)
	return u, ok
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format")
	}
	return parts[1], nil
}

// Authenticate requires an active account and stores it in the request
// context. This is the "active" capability level.
func (m *Manager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		u, err := m.Resolve(r.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			if !hydroerr.IsUnauthenticated(err) {
				status = http.StatusInternalServerError
			}
			http.Error(w, err.Error(), status)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, u)))
	})
}

// RequireAdmin layers the "admin" capability on top of Authenticate.
func (m *Manager) RequireAdmin(next http.Handler) http.Handler {
	return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		if !ok || u.Role != RoleAdmin {
			http.Error(w, "admin capability required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
