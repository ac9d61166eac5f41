// Package credentials persists the portal's durable client-side state: the bearer token pair,
// the last known identity and the enrollment counter.
package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Key names a durable entry.
type Key string

const (
	KeyAccess           Key = "access"
	KeyRefresh          Key = "refresh"
	KeyRole             Key = "role"
	KeyUsername         Key = "username"
	KeyLastEnrollmentID Key = "lastEnrollmentId"
)

// TokenKeys are the entries cleared when a refresh fails.
var TokenKeys = []Key{KeyAccess, KeyRefresh}

// SessionKeys are the entries cleared on logout or an expired session.
var SessionKeys = []Key{KeyAccess, KeyRefresh, KeyRole, KeyUsername}

// Store is a durable string key-value store. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Set(ctx context.Context, key Key, value string) error
	Delete(ctx context.Context, keys ...Key) error
}

// Identity is the persisted role/username pair.
type Identity struct {
	Role     string
	Username string
}

func (i Identity) IsZero() bool {
	return i.Role == "" && i.Username == ""
}

// LoadToken returns the stored token pair, or nil when no access token is stored.
func LoadToken(ctx context.Context, s Store) (*oauth2.Token, error) {
	access, ok, err := s.Get(ctx, KeyAccess)
	if err != nil {
		return nil, fmt.Errorf("[credentials LoadToken] access: %w", err)
	}
	if !ok || access == "" {
		return nil, nil
	}
	refresh, _, err := s.Get(ctx, KeyRefresh)
	if err != nil {
		return nil, fmt.Errorf("[credentials LoadToken] refresh: %w", err)
	}
	return NewToken(access, refresh), nil
}

// RefreshToken returns the stored refresh token, empty when absent.
func RefreshToken(ctx context.Context, s Store) (string, error) {
	refresh, _, err := s.Get(ctx, KeyRefresh)
	if err != nil {
		return "", fmt.Errorf("[credentials RefreshToken] %w", err)
	}
	return refresh, nil
}

// SaveToken persists both halves of the pair. An empty refresh token leaves the stored one in place.
func SaveToken(ctx context.Context, s Store, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("[credentials SaveToken] empty access token")
	}
	if err := s.Set(ctx, KeyAccess, tok.AccessToken); err != nil {
		return fmt.Errorf("[credentials SaveToken] access: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil
	}
	if err := s.Set(ctx, KeyRefresh, tok.RefreshToken); err != nil {
		return fmt.Errorf("[credentials SaveToken] refresh: %w", err)
	}
	return nil
}

func SaveAccessToken(ctx context.Context, s Store, access string) error {
	if err := s.Set(ctx, KeyAccess, access); err != nil {
		return fmt.Errorf("[credentials SaveAccessToken] %w", err)
	}
	return nil
}

// LoadIdentity returns the stored identity only when both role and username are present.
func LoadIdentity(ctx context.Context, s Store) (Identity, bool, error) {
	role, _, err := s.Get(ctx, KeyRole)
	if err != nil {
		return Identity{}, false, fmt.Errorf("[credentials LoadIdentity] role: %w", err)
	}
	username, _, err := s.Get(ctx, KeyUsername)
	if err != nil {
		return Identity{}, false, fmt.Errorf("[credentials LoadIdentity] username: %w", err)
	}
	if role == "" || username == "" {
		return Identity{}, false, nil
	}
	return Identity{Role: role, Username: username}, true, nil
}

func SaveIdentity(ctx context.Context, s Store, id Identity) error {
	if id.Role == "" || id.Username == "" {
		return fmt.Errorf("[credentials SaveIdentity] role and username are both required")
	}
	if err := s.Set(ctx, KeyRole, id.Role); err != nil {
		return fmt.Errorf("[credentials SaveIdentity] role: %w", err)
	}
	if err := s.Set(ctx, KeyUsername, id.Username); err != nil {
		return fmt.Errorf("[credentials SaveIdentity] username: %w", err)
	}
	return nil
}

func ClearTokens(ctx context.Context, s Store) error {
	return s.Delete(ctx, TokenKeys...)
}

func ClearSession(ctx context.Context, s Store) error {
	return s.Delete(ctx, SessionKeys...)
}

// NewToken builds a bearer token pair. The expiry is read from the access token's exp claim
// when it is a JWT; the signature is not checked, the backend owns verification.
func NewToken(access, refresh string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       AccessExpiry(access),
	}
}

// AccessExpiry returns the exp claim of a JWT access token, or the zero time.
func AccessExpiry(access string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
