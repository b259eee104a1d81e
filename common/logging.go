package common

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

type LoggingOpts struct {
	Debug bool
	JSON  bool
	// Color selects the tint console handler. Ignored when JSON is set.
	Color   bool
	Service string
	Version string

	// Output defaults to os.Stdout.
	Output io.Writer
}

func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}

	switch {
	case opts.JSON:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel}))
	case opts.Color:
		log = slog.New(tint.NewHandler(out, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		}))
	default:
		log = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel}))
	}

	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}

	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}

	return log
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
