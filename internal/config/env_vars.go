package config

import (
	"os"
	"path/filepath"
)

const (
	appNameVar     = "APP_NAME"
	credentialsVar = "DOCS_CREDENTIALS_FILE"
	redisAddrVar   = "DOCS_REDIS_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Docs Client")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetCredentialsFile returns the path used by the file-backed credential
// repo. Defaults to a dotfile in the user's home directory.
func (EnvVars) GetCredentialsFile() string {
	if path := os.Getenv(credentialsVar); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docs-credentials.json"
	}
	return filepath.Join(home, ".docs-credentials.json")
}

func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
