package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

// Options selects the log level and destinations.
type Options struct {
	Level string

	// Dir, when set, adds a JSON log file named mpak_<timestamp>.log in it.
	Dir string

	// Console receives human-readable logs. Nil means os.Stderr, which
	// keeps stdout free for file contents and listings.
	Console io.Writer
}

// levels maps accepted level names to slog levels.
// Unknown names fall back to info.
var levels = map[string]slog.Level{
	"trace":   slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"fatal":   slog.LevelError,
}

// Setup installs the default slog logger. The returned close function
// flushes and closes the log file, if one was opened; it is never nil.
func Setup(opts Options) (closeFn func() error, err error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level := parseLogLevel(opts.Level)

	var handler slog.Handler = tint.NewHandler(console, &tint.Options{Level: level})
	closeFn = func() error { return nil }

	if opts.Dir != "" {
		f, err := openLogFile(os.ExpandEnv(opts.Dir), time.Now())
		if err != nil {
			return closeFn, err
		}
		handler = slogmulti.Fanout(handler, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closeFn = f.Close

		fmt.Fprintf(console, "Logging to file: %s\n", f.Name())
	}

	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}

func openLogFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log output directory: %w", err)
	}

	path := filepath.Join(dir, "mpak_"+now.Format("20060102_150405")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	return f, nil
}

func parseLogLevel(s string) slog.Level {
	if level, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level
	}
	return slog.LevelInfo
}
