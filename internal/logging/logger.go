package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"shiftsync/internal/config"
)

// Options describes logger construction parameters.
//
// OutputPaths receive every record at or above Level. ErrorOutputPaths
// receive only error records; a path listed in both is written once.
// "stdout" and "stderr" name the process streams, anything else is a file.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// NoColor disables ANSI colour even when a stream is a terminal.
	NoColor bool
}

type sink struct {
	w        io.Writer
	color    bool
	errsOnly bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	sinks, err := openSinks(outputs, opts.ErrorOutputPaths, !opts.NoColor)
	if err != nil {
		return nil, err
	}

	handlers := make([]slog.Handler, 0, len(sinks))
	for _, s := range sinks {
		var h slog.Handler
		if format == "json" {
			h = newJSONHandler(s.w, levelVar, addSource)
		} else {
			h = newConsoleHandler(s.w, levelVar, addSource, s.color)
		}
		if s.errsOnly {
			h = newMinLevelHandler(h, slog.LevelError)
		}
		handlers = append(handlers, h)
	}
	return slog.New(newFanoutHandler(handlers...)), nil
}

// NewFromConfig creates a logger writing to stdout and <log_dir>/shiftsync.log.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	outputs := []string{"stdout"}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputs = append(outputs, filepath.Join(dir, "shiftsync.log"))
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openSinks(outputPaths, errorPaths []string, allowColor bool) ([]sink, error) {
	seen := map[string]struct{}{}
	var sinks []sink
	add := func(path string, errsOnly bool) error {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			return nil
		}
		if _, ok := seen[trimmed]; ok {
			return nil
		}
		seen[trimmed] = struct{}{}
		switch trimmed {
		case "stdout":
			sinks = append(sinks, sink{w: os.Stdout, color: allowColor && isTerminal(os.Stdout), errsOnly: errsOnly})
		case "stderr":
			sinks = append(sinks, sink{w: os.Stderr, color: allowColor && isTerminal(os.Stderr), errsOnly: errsOnly})
		default:
			if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create log directory %s: %w", dir, err)
				}
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			sinks = append(sinks, sink{w: file, errsOnly: errsOnly})
		}
		return nil
	}
	for _, path := range outputPaths {
		if err := add(path, false); err != nil {
			return nil, err
		}
	}
	for _, path := range errorPaths {
		if err := add(path, true); err != nil {
			return nil, err
		}
	}
	return sinks, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
