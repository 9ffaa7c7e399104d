// Command chat is a terminal chat client for the chatrelay server.
//
//	chat --url http://localhost:8080 --preset restaurant
//
// Each line read from stdin is sent as a user turn. Replies stream in as
// they are generated unless --no-stream is given.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lucidbot/chatrelay/pkg/client"
	"github.com/lucidbot/chatrelay/pkg/debug"
)

// CLI holds the command-line flags.
type CLI struct {
	URL         string   `short:"u" help:"Relay base URL." default:"http://localhost:8080" env:"CHATRELAY_URL"`
	Preset      string   `short:"i" help:"Industry preset: general, coach, restaurant, ecommerce, realestate." default:"general"`
	NoStream    bool     `help:"Wait for the whole reply instead of streaming it."`
	Model       string   `help:"Model to request (relay default when empty)."`
	MaxTokens   int      `help:"Maximum reply tokens (relay default when zero)."`
	Temperature float64  `help:"Sampling temperature between 0 and 1 (relay default when negative)." default:"-1"`
	LogLevel    string   `help:"Log level for client diagnostics." default:"warn"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("chat"),
		kong.Description("Chat with a Lucid Bot assistant through the relay."),
		kong.UsageOnError(),
	)
	if err := run(cli); err != nil {
		fmt.Fprintln(os.Stderr, "chat:", err)
		kctx.Exit(1)
	}
}

func run(cli CLI) error {
	debug.Init("", cli.LogLevel, "text")

	preset, err := lookupPreset(cli.Preset)
	if err != nil {
		return err
	}

	c := client.New(cli.URL, client.WithLogger(slog.Default()))
	opts := client.RequestOptions{Model: cli.Model, MaxTokens: cli.MaxTokens}
	if cli.Temperature >= 0 {
		opts.Temperature = &cli.Temperature
	}
	s := newSession(c, preset, !cli.NoStream, opts, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s assistant. Type a message, or /quit to leave.\n", preset.Name)

	lines := make(chan string)
	go readLines(lines)

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				return nil
			}
			if err := s.ask(ctx, line); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

func readLines(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
}
