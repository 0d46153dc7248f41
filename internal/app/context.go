package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"smartsprint/internal/config"
)

// Overrides are flag or environment values that win over smartsprint.yml.
// Zero values leave the file setting alone.
type Overrides struct {
	BaseURL   string
	Timeout   time.Duration
	LogLevel  string
	LogFormat string
}

// ResolveConfig loads the workspace config, falling back to defaults when the
// file does not exist, and applies overrides. The result is validated.
func ResolveConfig(workspace string, o Overrides) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if o.BaseURL != "" {
		cfg.API.BaseURL = o.BaseURL
	}
	if o.Timeout > 0 {
		cfg.API.Timeout = o.Timeout
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", config.Path(workspace), err)
	}
	return cfg, nil
}

// NewLogger builds the process logger. Output goes to w, stderr when nil.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
