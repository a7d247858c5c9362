package config

import (
	"os"
	"strings"
)

const appEnvVar = "APP_ENV"

// Canonical APP_ENV values.
const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

var environmentAliases = map[string]string{
	"dev":   EnvironmentDevelopment,
	"local": EnvironmentDevelopment,
	"stage": EnvironmentStaging,
	"stag":  EnvironmentStaging,
	"prod":  EnvironmentProduction,
}

// AppEnvironment returns the normalised APP_ENV value, defaulting to development.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// IsProductionLike reports whether env is staging or production.
func IsProductionLike(env string) bool {
	return env == EnvironmentProduction || env == EnvironmentStaging
}

// resolveEnvSpecificPath swaps the default config path for the environment's
// own file. An explicitly chosen path is left alone.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}
	if path != defaultPath {
		return path
	}
	if envPath, ok := envPaths[AppEnvironment()]; ok {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	return path
}
