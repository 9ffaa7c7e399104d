package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure. A missing
// upstream API key is not an error: the server starts and answers chat
// requests with a configuration error.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url must be an http(s) URL, got %q", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream.timeout must be > 0, got %v", c.Upstream.Timeout))
	}

	if c.Relay.DefaultModel == "" {
		errs = append(errs, errors.New("relay.default_model is required"))
	}
	if c.Relay.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("relay.max_tokens must be > 0, got %d", c.Relay.MaxTokens))
	}
	if c.Relay.Temperature < 0 || c.Relay.Temperature > 1 {
		errs = append(errs, fmt.Errorf("relay.temperature must be between 0 and 1, got %v", c.Relay.Temperature))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with /, got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}
