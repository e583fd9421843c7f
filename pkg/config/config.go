package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the immutable application configuration, loaded once at startup
// and validated before anything else runs.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Gateway   GatewayConfig
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Env          string // development | staging | production
	Port         string
	InternalPort string
	CORSOrigins  string
	Version      string
}

// IsProduction reports whether the process runs with production guarantees.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// Load reads the full configuration from the environment and validates it.
// Invalid configuration is a boot error, never a runtime surprise.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:          getEnv("APP_ENV", "development"),
			Port:         getEnv("PORT", "8080"),
			InternalPort: getEnv("INTERNAL_PORT", "8081"),
			CORSOrigins:  getEnv("CORS_ORIGINS", "*"),
			Version:      getEnv("APP_VERSION", "1.0.0"),
		},
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Auth:      loadAuthConfig(),
		RateLimit: loadRateLimitConfig(),
		Session:   loadSessionConfig(),
		Gateway:   loadGatewayConfig(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Auth.SecretKey) < 32 {
		return fmt.Errorf("config: SECRET_KEY must be at least 32 bytes, got %d", len(c.Auth.SecretKey))
	}
	if len(c.Database.CryptoKey) < 32 {
		return fmt.Errorf("config: PGCRYPTO_KEY must be at least 32 bytes, got %d", len(c.Database.CryptoKey))
	}
	if c.Auth.Algorithm != "HS256" && c.Auth.Algorithm != "RS256" {
		return fmt.Errorf("config: JWT_ALGORITHM must be HS256 or RS256, got %q", c.Auth.Algorithm)
	}
	// An ephemeral keypair breaks token validity across restarts, so it is
	// only tolerated outside production.
	if c.Auth.Algorithm == "RS256" && c.Auth.RSAPrivateKeyPEM == "" && c.App.IsProduction() {
		return fmt.Errorf("config: RS256 selected but JWT_RSA_PRIVATE_KEY is not set; refusing to boot in production")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("config: token lifetimes must be positive")
	}
	return nil
}

// ============================================================================
// Env helpers
// ============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
