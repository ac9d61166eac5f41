package config

type StorageConfig interface {
	GetCredentialBackend() string
	GetCredentialFile() string
	GetCredentialSecret() string
	GetCredentialNamespace() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

const (
	CredentialBackendFile  = "file"
	CredentialBackendRedis = "redis"

	devCredentialSecret = "academy-portal-dev-only-secret"
)

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetCredentialBackend() string {
	return GetEnv("CREDENTIAL_BACKEND", CredentialBackendFile)
}

func (Storage) GetCredentialFile() string {
	return GetEnv("CREDENTIAL_FILE", "./data/credentials.sealed")
}

// GetCredentialSecret falls back to a fixed secret only in DEV.
func (Storage) GetCredentialSecret() string {
	secret := GetEnv("CREDENTIAL_SECRET", "")
	if secret == "" && (EnvVars{}).GetEnv() == "DEV" {
		return devCredentialSecret
	}
	return secret
}

func (Storage) GetCredentialNamespace() string {
	return GetEnv("CREDENTIAL_NAMESPACE", "default")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetEnvAsInt("REDIS_DB", 0)
}
