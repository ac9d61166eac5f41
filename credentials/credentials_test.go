package credentials_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/academy-portal/credentials"
	"github.com/jrsteele09/academy-portal/credentials/storefake"
	"github.com/stretchr/testify/require"
)

func signedAccess(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "jane",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestLoadToken(t *testing.T) {
	ctx := context.Background()

	t.Run("absent access token", func(t *testing.T) {
		store := storefake.NewSeededFakeStore(map[credentials.Key]string{credentials.KeyRefresh: "r1"})
		tok, err := credentials.LoadToken(ctx, store)
		require.NoError(t, err)
		require.Nil(t, tok)
	})

	t.Run("opaque tokens have no expiry", func(t *testing.T) {
		store := storefake.NewSeededFakeStore(map[credentials.Key]string{
			credentials.KeyAccess:  "a1",
			credentials.KeyRefresh: "r1",
		})
		tok, err := credentials.LoadToken(ctx, store)
		require.NoError(t, err)
		require.Equal(t, "a1", tok.AccessToken)
		require.Equal(t, "r1", tok.RefreshToken)
		require.Equal(t, "Bearer", tok.TokenType)
		require.True(t, tok.Expiry.IsZero())
	})

	t.Run("jwt access token expiry is decoded", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		store := storefake.NewSeededFakeStore(map[credentials.Key]string{credentials.KeyAccess: signedAccess(t, exp)})
		tok, err := credentials.LoadToken(ctx, store)
		require.NoError(t, err)
		require.True(t, exp.Equal(tok.Expiry))
	})
}

func TestSaveToken(t *testing.T) {
	ctx := context.Background()
	store := storefake.NewSeededFakeStore(map[credentials.Key]string{credentials.KeyRefresh: "r0"})

	require.Error(t, credentials.SaveToken(ctx, store, nil))

	require.NoError(t, credentials.SaveToken(ctx, store, credentials.NewToken("a1", "")))
	access, _ := store.Value(credentials.KeyAccess)
	refresh, _ := store.Value(credentials.KeyRefresh)
	require.Equal(t, "a1", access)
	require.Equal(t, "r0", refresh, "empty refresh keeps the stored one")

	require.NoError(t, credentials.SaveToken(ctx, store, credentials.NewToken("a2", "r2")))
	refresh, _ = store.Value(credentials.KeyRefresh)
	require.Equal(t, "r2", refresh)
}

func TestIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("partial identity is treated as absent", func(t *testing.T) {
		store := storefake.NewSeededFakeStore(map[credentials.Key]string{credentials.KeyRole: "faculty"})
		_, ok, err := credentials.LoadIdentity(ctx, store)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		store := storefake.NewFakeStore()
		require.Error(t, credentials.SaveIdentity(ctx, store, credentials.Identity{Role: "admin"}))
		require.NoError(t, credentials.SaveIdentity(ctx, store, credentials.Identity{Role: "admin", Username: "root"}))
		id, ok, err := credentials.LoadIdentity(ctx, store)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, credentials.Identity{Role: "admin", Username: "root"}, id)
	})

	t.Run("clear session removes tokens and identity only", func(t *testing.T) {
		store := storefake.NewSeededFakeStore(map[credentials.Key]string{
			credentials.KeyAccess:           "a1",
			credentials.KeyRefresh:          "r1",
			credentials.KeyRole:             "admin",
			credentials.KeyUsername:         "root",
			credentials.KeyLastEnrollmentID: "MIRA0042",
		})
		require.NoError(t, credentials.ClearSession(ctx, store))
		for _, k := range credentials.SessionKeys {
			_, ok := store.Value(k)
			require.False(t, ok, k)
		}
		last, ok := store.Value(credentials.KeyLastEnrollmentID)
		require.True(t, ok)
		require.Equal(t, "MIRA0042", last)
	})
}
