// Command chatrelay runs the chat relay server.
//
// Configuration is read from a YAML file, a .env file and the environment
// (see package config). Flags override both:
//
//	chatrelay --config /etc/chatrelay/config.yaml --port 8080 --log-level debug
package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/lucidbot/chatrelay/pkg/config"
	"github.com/lucidbot/chatrelay/pkg/debug"
	"github.com/lucidbot/chatrelay/pkg/provider/openaicompat"
	"github.com/lucidbot/chatrelay/pkg/relay"
	transporthttp "github.com/lucidbot/chatrelay/pkg/transport/http"
)

// CLI holds the command-line flags. Unset flags leave the loaded
// configuration untouched.
type CLI struct {
	Config   string `short:"c" help:"Path to config file." type:"path" env:"CHATRELAY_CONFIG"`
	Port     int    `short:"p" help:"Listen port (overrides server.port)."`
	LogLevel string `help:"Log level: trace, debug, info, warn, error (overrides logging.level)."`
	EnvFile  string `help:"Path to a .env file." default:".env"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("chatrelay"),
		kong.Description("Relay chat conversations to an OpenAI-compatible upstream."),
		kong.UsageOnError(),
	)
	if err := run(cli); err != nil {
		slog.Error("server failed", "error", err)
		kctx.Exit(1)
	}
}

func run(cli CLI) error {
	cfg, err := config.Load(cli.Config, config.WithEnvFile(cli.EnvFile))
	if err != nil {
		return err
	}
	if cli.Port != 0 {
		cfg.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	srv, cleanup, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return srv.ListenAndServe()
}

// newServer wires the upstream client, the relay and the HTTP server
// from cfg.
func newServer(cfg *config.Config) (*transporthttp.Server, func(), error) {
	upstream := openaicompat.NewClient(openaicompat.UpstreamConfig{
		APIKey:         cfg.Upstream.APIKey,
		OrganizationID: cfg.Upstream.OrganizationID,
		Endpoint:       cfg.Upstream.BaseURL,
	})
	route := upstream.Route()

	if !cfg.HasAPIKey() {
		slog.Warn("no upstream API key configured; chat requests will fail until one is set")
	}

	r, err := relay.New(upstream, relay.Config{
		DefaultModel:         cfg.Relay.DefaultModel,
		MaxTokens:            cfg.Relay.MaxTokens,
		Temperature:          cfg.Relay.Temperature,
		Timeout:              cfg.Upstream.Timeout,
		ModelOverride:        route.ModelOverride,
		CredentialConfigured: cfg.HasAPIKey(),
		CredentialLabel:      route.Format.Redacted(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating relay: %w", err)
	}

	adapterCfg := transporthttp.Config{
		MaxBodySize:    cfg.Server.MaxBodySize,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(r, r,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithAdapterConfig(adapterCfg),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(slog.Default()),
	)

	slog.Info("relay configured",
		"upstream", route.BaseURL,
		"credential", route.Format.Redacted(),
		"model", cfg.Relay.DefaultModel,
		"model_override", route.ModelOverride,
		"port", cfg.Server.Port,
	)

	cleanup := func() {
		if err := upstream.Close(); err != nil {
			slog.Warn("closing upstream", "error", err)
		}
	}
	return srv, cleanup, nil
}
