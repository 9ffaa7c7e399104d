// Package config provides unified configuration for the chatrelay server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env file (values never override the real environment)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (CHATRELAY_ prefix and the upstream's
//     conventional OPENAI_ names)
//  5. Secret references (api_key_file, api_key_parameter)
//  6. Validation
package config

import "time"

// Config holds all configuration for the chatrelay server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Relay         RelayConfig         `yaml:"relay"`
	CORS          CORSConfig          `yaml:"cors"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
}

// UpstreamConfig holds the chat-completion upstream settings.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url"` // default: https://api.openai.com/v1
	APIKey         string        `yaml:"api_key"`
	APIKeyFile     string        `yaml:"api_key_file"`      // _file variant for api_key
	APIKeyParam    string        `yaml:"api_key_parameter"` // SSM parameter name for api_key
	AWSRegion      string        `yaml:"aws_region"`        // region for api_key_parameter
	OrganizationID string        `yaml:"organization_id"`
	Timeout        time.Duration `yaml:"timeout"` // default: 120s
}

// RelayConfig holds the defaults applied to chat requests.
type RelayConfig struct {
	DefaultModel string  `yaml:"default_model"` // default: gpt-4o-mini
	MaxTokens    int     `yaml:"max_tokens"`    // default: 400
	Temperature  float64 `yaml:"temperature"`   // default: 0.7
}

// CORSConfig holds cross-origin settings for the web front end.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"` // default: http://localhost:3000
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // DEBUG, INFO, WARN, ERROR, TRACE; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.openai.com/v1",
			Timeout: 120 * time.Second,
		},
		Relay: RelayConfig{
			DefaultModel: "gpt-4o-mini",
			MaxTokens:    400,
			Temperature:  0.7,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// HasAPIKey reports whether an upstream credential was resolved.
func (c *Config) HasAPIKey() bool {
	return c.Upstream.APIKey != ""
}
