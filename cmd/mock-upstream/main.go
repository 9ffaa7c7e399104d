// Command mock-upstream runs a deterministic OpenAI-compatible chat
// completions server for local development of the relay and its clients.
//
// Point the relay at it with OPENAI_BASE_URL=http://localhost:9090/v1 and
// any API key.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/lucidbot/chatrelay/pkg/provider/openaicompat/upstreamtest"
)

// CLI holds the command-line flags.
type CLI struct {
	Port       int           `short:"p" help:"Listen port." default:"9090" env:"MOCK_PORT"`
	ChunkDelay time.Duration `help:"Delay before each streamed delta." default:"50ms" env:"MOCK_CHUNK_DELAY"`
	FailAfter  int           `help:"End streams with an error after this many deltas (0 disables)." env:"MOCK_FAIL_AFTER"`
	Status     int           `help:"Answer every call with this HTTP status (0 disables)." env:"MOCK_STATUS"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("mock-upstream"),
		kong.Description("Deterministic chat completions server."),
		kong.UsageOnError(),
	)
	if err := run(cli); err != nil {
		slog.Error("mock upstream failed", "error", err)
		kctx.Exit(1)
	}
}

func run(cli CLI) error {
	handler := upstreamtest.NewHandler(upstreamtest.Script{
		ChunkDelay: cli.ChunkDelay,
		FailAfter:  cli.FailAfter,
		Status:     cli.Status,
		Message:    "mock upstream failure",
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cli.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock upstream starting", "port", cli.Port, "chunk_delay", cli.ChunkDelay)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("mock upstream shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
