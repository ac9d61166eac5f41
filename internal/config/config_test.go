package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/academy-portal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, name := range []string{"PORT", "BIND_HOST", "ENV", "API_BASE_URL", "API_TIMEOUT", "CREDENTIAL_SECRET", "SESSION_SETTLE_TIMEOUT"} {
		t.Setenv(name, "")
	}
	c := config.New()

	require.Equal(t, "127.0.0.1:8080", c.GetListenAddress())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:8000/", c.GetAPIBaseURL())
	require.Equal(t, 30*time.Second, c.GetAPITimeout())
	require.Equal(t, 10*time.Second, c.GetSessionSettleTimeout())
	require.Equal(t, config.CredentialBackendFile, c.GetCredentialBackend())
	require.NotEmpty(t, c.GetCredentialSecret(), "DEV falls back to a development secret")
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("BIND_HOST", "0.0.0.0")
	t.Setenv("ENV", "PROD")
	t.Setenv("API_BASE_URL", "https://api.example.com/api")
	t.Setenv("API_TIMEOUT", "5")
	t.Setenv("PROFILE_TIMEOUT", "1500ms")
	t.Setenv("CREDENTIAL_SECRET", "")
	t.Setenv("REDIS_DB", "not-a-number")
	c := config.New()

	require.Equal(t, "0.0.0.0:9090", c.GetListenAddress())
	require.Equal(t, "https://api.example.com/api/", c.GetAPIBaseURL())
	require.Equal(t, 5*time.Second, c.GetAPITimeout())
	require.Equal(t, 1500*time.Millisecond, c.GetProfileTimeout())
	require.Empty(t, c.GetCredentialSecret(), "no fallback secret outside DEV")
	require.Equal(t, 0, c.GetRedisDB())
}
