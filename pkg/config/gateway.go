package config

import "time"

// UpstreamConfig names one downstream microservice.
type UpstreamConfig struct {
	Tag     string
	BaseURL string
	Timeout time.Duration
}

// GatewayConfig configures the request router. The route table itself is
// assembled in the composition root from these upstreams; it is read-only
// after startup.
type GatewayConfig struct {
	Upstreams      []UpstreamConfig
	DefaultTimeout time.Duration
	BodyLimit      int
}

func loadGatewayConfig() GatewayConfig {
	defaultTimeout := getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second)

	return GatewayConfig{
		Upstreams: []UpstreamConfig{
			{Tag: "admin", BaseURL: getEnv("ADMIN_SERVICE_URL", "http://localhost:9001"), Timeout: defaultTimeout},
			{Tag: "chat", BaseURL: getEnv("CHAT_SERVICE_URL", "http://localhost:9002"), Timeout: getEnvDuration("CHAT_UPSTREAM_TIMEOUT", 120*time.Second)},
			{Tag: "memory", BaseURL: getEnv("MEMORY_SERVICE_URL", "http://localhost:9003"), Timeout: defaultTimeout},
		},
		DefaultTimeout: defaultTimeout,
		BodyLimit:      getEnvInt("GATEWAY_BODY_LIMIT", 10*1024*1024),
	}
}
