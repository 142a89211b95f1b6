// Package auth provides the authenticated-session abstraction the sync engine
// depends on, plus the file-backed session used by the CLI.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Provider reports whether an authenticated session exists and who owns it.
//
// The sync engine and the tombstone collector consult this before touching the
// remote store; they never run remote operations unauthenticated.
type Provider interface {
	// IsAuthenticated reports whether a valid session exists right now.
	IsAuthenticated() bool

	// OwnerID returns the authenticated user's identifier, or "" when there
	// is no valid session.
	OwnerID() string
}

// Claims is the session token payload.
type Claims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed session token for the owner. The expiry is
// now plus ttl, taken as given; a non-positive ttl yields an already-expired
// token.
func GenerateToken(secret, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a session token and returns its claims.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// FileSession is a Provider backed by a token file under the data directory.
// Login writes the file; Logout removes it. The token is validated on every
// read so an expired session flips to unauthenticated without restarts.
type FileSession struct {
	path   string
	secret string
}

// NewFileSession returns a session reading tokens from dir/session.token.
func NewFileSession(dir, secret string) *FileSession {
	return &FileSession{
		path:   filepath.Join(dir, "session.token"),
		secret: secret,
	}
}

// Login issues a token for the owner and persists it.
func (s *FileSession) Login(ownerID string, ttl time.Duration) error {
	if ownerID == "" {
		return fmt.Errorf("owner id is required")
	}
	token, err := GenerateToken(s.secret, ownerID, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue session token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Logout removes the persisted session. Idempotent.
func (s *FileSession) Logout() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// IsAuthenticated implements Provider.
func (s *FileSession) IsAuthenticated() bool {
	return s.OwnerID() != ""
}

// OwnerID implements Provider.
func (s *FileSession) OwnerID() string {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	claims, err := ParseToken(s.secret, strings.TrimSpace(string(raw)))
	if err != nil {
		return ""
	}
	return claims.OwnerID
}

// Static is a fixed-owner Provider, used in tests and one-shot commands.
type Static struct {
	Owner string
}

// IsAuthenticated implements Provider.
func (s Static) IsAuthenticated() bool { return s.Owner != "" }

// OwnerID implements Provider.
func (s Static) OwnerID() string { return s.Owner }
