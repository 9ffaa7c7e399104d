// Package debug provides category-based debug logging for chatrelay.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): CHATRELAY_DEBUG env or config
//   - Levels (HOW MUCH detail): CHATRELAY_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("upstream", "request", "model", model, "messages", n)
//	if debug.Enabled("stream") { /* expensive formatting */ }
//
// Categories: relay, upstream, stream, transport, config, client, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// Environment variables that override configured values.
const (
	EnvCategories = "CHATRELAY_DEBUG"
	EnvLevel      = "CHATRELAY_LOG_LEVEL"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
// At TRACE, full message bodies and raw frames are logged.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled debug categories.
// Read-only after Init().
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv(EnvCategories))
}

// Init configures categories and installs the default slog handler on
// stderr. Environment takes precedence over the arguments. format is
// "json" or "text".
func Init(configCategories, configLevel, format string) {
	InitTo(os.Stderr, configCategories, configLevel, format)
}

// InitTo is Init with an explicit output.
func InitTo(w io.Writer, configCategories, configLevel, format string) {
	cats := os.Getenv(EnvCategories)
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv(EnvLevel)
	if level == "" {
		level = configLevel
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
func Trace(category string, msg string, args ...any) {
	if !TraceIsEnabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the list of enabled categories.
func Categories() []string {
	var result []string
	for k := range categories {
		result = append(result, k)
	}
	return result
}

// Truncate returns s cut to at most maxLen runes, with "..." appended if
// anything was removed.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
