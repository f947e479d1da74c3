package commands

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sirosfoundation/go-regpack/internal/config"
)

type Globals struct {
	Debug   bool
	Version string
}

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// newLogger builds the command logger from the logging section. --debug
// overrides the configured level.
func newLogger(cfg config.LoggingConfig, debug bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}

	var w io.Writer = stderr
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
