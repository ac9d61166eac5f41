package config

import "time"

type SecurityConfig interface {
	GetSessionSettleTimeout() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSettleTimeout bounds how long a guarded page waits for session hydration.
func (Security) GetSessionSettleTimeout() time.Duration {
	return GetEnvAsDuration("SESSION_SETTLE_TIMEOUT", 10*time.Second)
}
