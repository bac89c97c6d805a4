// Package logger builds the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig enables a rotating file sink next to stdout.
type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type Config struct {
	Level  string     `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string     `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File   FileConfig `mapstructure:"file"`
	// Sentry forwards error records to the Sentry hub. Sentry must be initialised by the caller.
	Sentry bool `mapstructure:"-"`
}

// Logger is a slog.Logger whose level can be changed at runtime.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

func New(cfg Config) (*Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, stdout io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(lvl)

	var (
		out    = stdout
		closer io.Closer
	)
	if cfg.File.Enabled {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		out = io.MultiWriter(stdout, rotator)
		closer = rotator
	}

	opts := &slog.HandlerOptions{Level: levelVar}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.Sentry {
		handler = newFanout(handler, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
	}

	return &Logger{
		Logger: slog.New(NewMaskingHandler(handler)),
		level:  levelVar,
		closer: closer,
	}, nil
}

// ParseLevel maps a config level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel changes the level of every logger derived from l.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(lvl)
	return nil
}

func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close flushes the file sink, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
