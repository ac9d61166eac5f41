package config

import (
	"strings"
	"time"
)

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend base URL, always with a trailing slash.
func (API) GetAPIBaseURL() string {
	base := GetEnv("API_BASE_URL", "http://localhost:8000/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (API) GetAPITimeout() time.Duration {
	return GetEnvAsDuration("API_TIMEOUT", 30*time.Second)
}

func (API) GetProfileTimeout() time.Duration {
	return GetEnvAsDuration("PROFILE_TIMEOUT", 8*time.Second)
}
