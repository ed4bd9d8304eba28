package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	envPrefix = "FOODGRAM"

	defaultSecretsDir = "/run/secrets"
	defaultJWTSecret  = "dev-secret-change-me"
)

// Config holds all configuration for the application
type Config struct {
	Env Environment `mapstructure:"-"`

	// Server configuration
	ServerPort  string `mapstructure:"SERVER_PORT"`
	ServerHost  string `mapstructure:"SERVER_HOST"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	// Database configuration
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSL_MODE"`

	// Redis configuration. An empty RedisURL and RedisHost disables Redis.
	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Auth
	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	// Recipe image storage
	S3Bucket     string `mapstructure:"S3_BUCKET"`
	S3Region     string `mapstructure:"S3_REGION"`
	S3Endpoint   string `mapstructure:"S3_ENDPOINT"`
	MediaBaseURL string `mapstructure:"MEDIA_BASE_URL"`
	// MediaRoot is where images are written when no bucket is configured.
	MediaRoot string `mapstructure:"MEDIA_ROOT"`

	// Recipe creation rate limit per user
	RecipeRateLimit  int           `mapstructure:"RECIPE_RATE_LIMIT"`
	RecipeRateWindow time.Duration `mapstructure:"RECIPE_RATE_WINDOW"`

	PageSize int    `mapstructure:"PAGE_SIZE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":        "8080",
	"SERVER_HOST":        "0.0.0.0",
	"CORS_ORIGINS":       "http://localhost:3000",
	"DB_HOST":            "localhost",
	"DB_PORT":            "5432",
	"DB_USER":            "foodgram",
	"DB_PASSWORD":        "",
	"DB_NAME":            "foodgram",
	"DB_SSL_MODE":        sslModeDisable,
	"REDIS_URL":          "",
	"REDIS_HOST":         "",
	"REDIS_PORT":         "6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"JWT_SECRET":         defaultJWTSecret,
	"TOKEN_TTL":          "24h",
	"S3_BUCKET":          "",
	"S3_REGION":          "us-east-1",
	"S3_ENDPOINT":        "",
	"MEDIA_BASE_URL":     "",
	"MEDIA_ROOT":         "media",
	"RECIPE_RATE_LIMIT":  30,
	"RECIPE_RATE_WINDOW": "1h",
	"PAGE_SIZE":          6,
	"LOG_LEVEL":          "info",
}

// secretKeys maps Docker secret file names onto config keys. A present
// secret file wins over the environment.
var secretKeys = map[string]string{
	"db_password":    "DB_PASSWORD",
	"jwt_secret":     "JWT_SECRET",
	"redis_password": "REDIS_PASSWORD",
	"db_user":        "DB_USER",
}

// LoadConfig reads FOODGRAM_* environment variables over the defaults, then
// applies any Docker secrets found in SECRETS_DIR.
func LoadConfig() (*Config, error) {
	env := GetEnvironment()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "bind %s", key)
		}
	}

	for secret, key := range secretKeys {
		if value := readSecret(secret); value != "" {
			v.Set(key, value)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.Env = env

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// DatabaseURL returns the postgres URL form used by the migration runner.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// RedisEnabled reports whether a Redis endpoint is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisHost != ""
}

// S3Enabled reports whether recipe images go to an S3 bucket.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// AllowedOrigins splits CORSOrigins on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = defaultSecretsDir
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
