package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lucidbot/chatrelay/pkg/debug"
	"github.com/lucidbot/chatrelay/pkg/secrets/paramstore"
)

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	envFile string
	params  paramstore.Getter
	ctx     context.Context
}

// WithEnvFile sets the .env file to read. An empty path disables .env
// loading. The default is ".env" in the working directory.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) { o.envFile = path }
}

// WithParameterGetter sets the parameter store used for
// upstream.api_key_parameter. Without it a client is built from the
// default AWS credential chain when the field is set.
func WithParameterGetter(g paramstore.Getter) LoadOption {
	return func(o *loadOptions) { o.params = g }
}

// WithContext sets the context for remote secret lookups.
func WithContext(ctx context.Context) LoadOption {
	return func(o *loadOptions) { o.ctx = ctx }
}

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env file
//  3. YAML config file (explicit path, CHATRELAY_CONFIG env, ./config.yaml, /etc/chatrelay/config.yaml)
//  4. Environment variable overrides
//  5. Secret reference resolution (api_key_file, api_key_parameter)
//  6. Validation
func Load(configPath string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{envFile: ".env", ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Defaults()

	if err := loadDotEnv(o.envFile); err != nil {
		return nil, fmt.Errorf("loading env file %s: %w", o.envFile, err)
	}

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "config file loaded", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveSecretReferences(o.ctx, &cfg, o.params); err != nil {
		return nil, fmt.Errorf("resolving secret references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv reads KEY=VALUE pairs from path into the process
// environment. Variables that are already set win. A missing file is not
// an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil {
		debug.Log("config", "env file loaded", "path", path)
	}
	return err
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. CHATRELAY_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/chatrelay/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("CHATRELAY_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/chatrelay/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The
// OPENAI_* names are honoured so an existing upstream setup works
// unchanged; CHATRELAY_* names take precedence over them.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	setString := func(dst *string, names ...string) {
		for _, n := range names {
			if v := os.Getenv(n); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, name string) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(dst *time.Duration, name string) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	setInt(&cfg.Server.Port, "CHATRELAY_PORT")
	setDuration(&cfg.Server.ShutdownTimeout, "CHATRELAY_SHUTDOWN_TIMEOUT")

	setString(&cfg.Upstream.APIKey, "CHATRELAY_API_KEY", "OPENAI_API_KEY")
	setString(&cfg.Upstream.APIKeyFile, "CHATRELAY_API_KEY_FILE")
	setString(&cfg.Upstream.APIKeyParam, "CHATRELAY_API_KEY_PARAMETER")
	setString(&cfg.Upstream.OrganizationID, "CHATRELAY_ORGANIZATION_ID", "OPENAI_ORGANIZATION")
	setString(&cfg.Upstream.BaseURL, "CHATRELAY_BASE_URL", "OPENAI_BASE_URL")
	setDuration(&cfg.Upstream.Timeout, "CHATRELAY_UPSTREAM_TIMEOUT")

	setString(&cfg.Relay.DefaultModel, "CHATRELAY_MODEL")
	setInt(&cfg.Relay.MaxTokens, "CHATRELAY_MAX_TOKENS")
	if v := os.Getenv("CHATRELAY_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHATRELAY_TEMPERATURE: %w", err))
		} else {
			cfg.Relay.Temperature = f
		}
	}

	if v := os.Getenv("CHATRELAY_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}

	setString(&cfg.Logging.Level, "CHATRELAY_LOG_LEVEL")
	setString(&cfg.Logging.Format, "CHATRELAY_LOG_FORMAT")
	setString(&cfg.Logging.Debug, "CHATRELAY_DEBUG")

	return errors.Join(errs...)
}

// resolveSecretReferences fills upstream.api_key from api_key_file or
// api_key_parameter when it is not set directly. The file wins over the
// parameter store.
func resolveSecretReferences(ctx context.Context, cfg *Config, params paramstore.Getter) error {
	up := &cfg.Upstream
	if up.APIKey != "" {
		return nil
	}

	if up.APIKeyFile != "" {
		val, err := readSecretFile(up.APIKeyFile)
		if err != nil {
			return fmt.Errorf("upstream.api_key_file: %w", err)
		}
		up.APIKey = val
		return nil
	}

	if up.APIKeyParam != "" {
		if params == nil {
			client, err := paramstore.NewFromEnvironment(ctx, up.AWSRegion)
			if err != nil {
				return fmt.Errorf("upstream.api_key_parameter: %w", err)
			}
			params = client
		}
		val, err := params.GetParameter(ctx, up.APIKeyParam)
		if err != nil {
			return fmt.Errorf("upstream.api_key_parameter: %w", err)
		}
		up.APIKey = val
		slog.Info("upstream API key loaded from parameter store", "parameter", up.APIKeyParam)
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
