package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetBindHost() string
	GetListenAddress() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetProfileTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	Storage
	Security
}

// New loads an optional .env file and returns the environment backed configuration.
func New() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment variables")
	}
	return mainConfig{}
}
