package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	bindHostEnvVar = "BIND_HOST"
	appNameVar     = "APP_NAME"
	logLevelVar    = "LOG_LEVEL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	return strings.TrimPrefix(GetEnv(portEnvVar, "8080"), ":")
}

// GetBindHost defaults to loopback: the portal holds a single user's credentials.
func (EnvVars) GetBindHost() string {
	return GetEnv(bindHostEnvVar, "127.0.0.1")
}

func (e EnvVars) GetListenAddress() string {
	return e.GetBindHost() + ":" + e.GetPort()
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Academy Portal")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(envVar string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(envVar)); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsDuration accepts Go duration strings ("30s") or a bare number of seconds.
func GetEnvAsDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
