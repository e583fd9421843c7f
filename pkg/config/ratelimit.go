package config

import "time"

// ScopeLimit is one (limit, horizon) pair for a rate-limit scope.
type ScopeLimit struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig configures the sliding-window limiter. Auth endpoints get
// tighter limits than the default on purpose; do not loosen them to the
// general endpoint limit.
type RateLimitConfig struct {
	Global   ScopeLimit
	PerIP    ScopeLimit
	PerUser  ScopeLimit
	Endpoint ScopeLimit

	// EndpointOverrides maps "METHOD /path" to a tighter or looser limit.
	EndpointOverrides map[string]ScopeLimit

	// RoleMultipliers scales the per-user limit for a role ("admin" to 2.0).
	RoleMultipliers map[string]float64
}

func loadRateLimitConfig() RateLimitConfig {
	defaultLimit := getEnvInt("RATE_LIMIT_REQUESTS", 120)
	defaultWindow := getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)

	loginLimit := getEnvInt("LOGIN_RATE_LIMIT_REQUESTS", 10)
	loginWindow := getEnvDuration("LOGIN_RATE_LIMIT_WINDOW", time.Minute)

	return RateLimitConfig{
		Global:   ScopeLimit{Limit: getEnvInt("GLOBAL_RATE_LIMIT_REQUESTS", 10000), Window: defaultWindow},
		PerIP:    ScopeLimit{Limit: defaultLimit, Window: defaultWindow},
		PerUser:  ScopeLimit{Limit: getEnvInt("USER_RATE_LIMIT_REQUESTS", 300), Window: defaultWindow},
		Endpoint: ScopeLimit{Limit: defaultLimit, Window: defaultWindow},
		EndpointOverrides: map[string]ScopeLimit{
			"POST /api/v1/auth/token":          {Limit: loginLimit, Window: loginWindow},
			"POST /api/v1/auth/register":       {Limit: getEnvInt("REGISTER_RATE_LIMIT_REQUESTS", 5), Window: loginWindow},
			"POST /api/v1/auth/password-reset": {Limit: getEnvInt("RESET_RATE_LIMIT_REQUESTS", 5), Window: loginWindow},
		},
		RoleMultipliers: map[string]float64{
			"admin": 2.0,
		},
	}
}
