package config

import (
	"fmt"
	"strings"
)

const (
	sslModeDisable    = "disable"
	sslModeRequire    = "require"
	sslModeVerifyFull = "verify-full"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks the loaded configuration. Production additionally
// requires real credentials rather than development defaults.
func ValidateConfig(cfg *Config) error {
	var problems []string

	if cfg.ServerPort == "" {
		problems = append(problems, ValidationError{"SERVER_PORT", "is required"}.Error())
	}
	switch cfg.DBSSLMode {
	case sslModeDisable, sslModeRequire, sslModeVerifyFull:
	default:
		problems = append(problems, ValidationError{"DB_SSL_MODE", fmt.Sprintf("invalid value %q", cfg.DBSSLMode)}.Error())
	}
	if cfg.JWTSecret == "" {
		problems = append(problems, ValidationError{"JWT_SECRET", "is required"}.Error())
	}
	if cfg.TokenTTL <= 0 {
		problems = append(problems, ValidationError{"TOKEN_TTL", "must be positive"}.Error())
	}
	if cfg.PageSize <= 0 {
		problems = append(problems, ValidationError{"PAGE_SIZE", "must be positive"}.Error())
	}
	if cfg.RecipeRateLimit < 0 {
		problems = append(problems, ValidationError{"RECIPE_RATE_LIMIT", "must not be negative"}.Error())
	}

	if cfg.Env == Production {
		if cfg.JWTSecret == defaultJWTSecret {
			problems = append(problems, "jwt_secret secret is required in production")
		}
		if cfg.DBPassword == "" {
			problems = append(problems, "db_password secret is required in production")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "\n"))
	}
	return nil
}
