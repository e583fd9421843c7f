package config

import "time"

// AuthConfig configures token issuance and login policy.
type AuthConfig struct {
	SecretKey        string // HMAC signing key, also gates config validity
	Algorithm        string // HS256 | RS256
	RSAPrivateKeyPEM string // PEM-encoded, required for RS256 in production
	RSAPublicKeyPEM  string
	Issuer           string
	Audience         string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	MaxLoginAttempts int
	BcryptCost       int
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SecretKey:        getEnv("SECRET_KEY", ""),
		Algorithm:        getEnv("JWT_ALGORITHM", "HS256"),
		RSAPrivateKeyPEM: getEnv("JWT_RSA_PRIVATE_KEY", ""),
		RSAPublicKeyPEM:  getEnv("JWT_RSA_PUBLIC_KEY", ""),
		Issuer:           getEnv("JWT_ISSUER", "axongate"),
		Audience:         getEnv("JWT_AUDIENCE", "axongate-api"),
		AccessTokenTTL:   time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		RefreshTokenTTL:  time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,
		MaxLoginAttempts: getEnvInt("MAX_LOGIN_ATTEMPTS", 10),
		BcryptCost:       getEnvInt("BCRYPT_COST", 12),
	}
}

// SessionConfig configures the session registry defaults. Per-tenant policy
// can tighten these through the policy document.
type SessionConfig struct {
	MaxConcurrent int
	IdleTimeout   time.Duration
	HardLifetime  time.Duration
	SingleSession bool
	SweepInterval time.Duration
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		MaxConcurrent: getEnvInt("SESSION_MAX_CONCURRENT", 5),
		IdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		HardLifetime:  getEnvDuration("SESSION_HARD_LIFETIME", 24*time.Hour),
		SingleSession: getEnvBool("SESSION_SINGLE_MODE", false),
		SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
	}
}
