// Package logging builds the zap loggers used by the server: JSON lines to
// stdout and to a rotated file under the log directory.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultDir is used when no log directory is configured.
const DefaultDir = "log"

// Options control file rotation. Zero values take the defaults below.
type Options struct {
	Dir        string
	Level      zapcore.Level
	MaxSizeMB  int // default 50
	MaxBackups int // default 3
	MaxAgeDays int // default 7
	NoConsole  bool
}

// New returns a logger writing to dir/name and stdout. It fails when the
// log directory cannot be created.
func New(name string, opts Options) (*zap.Logger, error) {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 50
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 3
	}
	if opts.MaxAgeDays == 0 {
		opts.MaxAgeDays = 7
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, name),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	})

	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(enc), file, opts.Level)}
	if !opts.NoConsole {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), opts.Level))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// ParseLevel maps "debug", "info", "warn", "error" to a zap level. Unknown
// or empty strings give info.
func ParseLevel(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
