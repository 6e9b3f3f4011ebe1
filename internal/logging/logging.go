// Package logging builds the session logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type Options struct {
	// Level is a logrus level name; empty means info.
	Level string
	// Format is "text" or "json".
	Format string
	// Output is "stderr", "stdout", "discard" or a file path.
	Output string
}

// New returns a configured logger and a cleanup func that closes any log file.
func New(opts Options) (*logrus.Logger, func(), error) {
	log := logrus.New()
	cleanup := func() {}

	level := logrus.InfoLevel
	if raw := strings.TrimSpace(opts.Level); raw != "" {
		parsed, err := logrus.ParseLevel(raw)
		if err != nil {
			return nil, cleanup, fmt.Errorf("invalid log level %q: %w", raw, err)
		}
		level = parsed
	}
	log.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, cleanup, fmt.Errorf("invalid log format %q (allowed: text, json)", opts.Format)
	}

	out, closeFn, err := openOutput(opts.Output)
	if err != nil {
		return nil, cleanup, err
	}
	log.SetOutput(out)
	if closeFn != nil {
		cleanup = closeFn
	}
	return log, cleanup, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func openOutput(raw string) (io.Writer, func(), error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "stderr":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	case "discard", "none":
		return io.Discard, nil, nil
	}
	path := strings.TrimSpace(raw)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
