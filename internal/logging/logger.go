// Package logging builds the daemon's zap logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	Path    string
	Profile string
	Level   zapcore.Level
	// Quiet drops the stderr copy. Daemons spawned by inboxtui run quiet so
	// they do not draw over the terminal UI.
	Quiet bool
}

// New returns a logger writing JSON lines to opts.Path and, unless quiet,
// console lines to stderr. Every entry carries the profile name and PID.
func New(opts Options) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), opts.Level),
	}
	if !opts.Quiet {
		console := enc
		console.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), opts.Level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(
			zap.String("profile", opts.Profile),
			zap.Int("pid", os.Getpid()),
		),
	), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
