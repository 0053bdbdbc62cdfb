// Package logging builds structured loggers for the engine's three
// processes (Master, Player, View), all writing through log/slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the logging configuration shared by every process.
type Config struct {
	Level  string   `yaml:"level"`  // debug, info, warn, error
	Format string   `yaml:"format"` // json, text
	Output string   `yaml:"output"` // stdout, stderr, file
	File   *LogFile `yaml:"file,omitempty"`
}

// LogFile configures rotation when Output == "file".
type LogFile struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	MaxAgeDay int    `yaml:"max_age_days"`
	Compress  bool   `yaml:"compress"`
}

// NewLogger builds a *slog.Logger tagged with role ("master", "player",
// "view") and any extra fields (e.g. a player index).
func NewLogger(role string, cfg Config, fields ...any) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	writer := createWriter(cfg)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	logger := slog.New(handler).With("role", role)
	if len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return logger
}

// NewLoggerBasic is the convenience constructor cmd/player and cmd/view use.
func NewLoggerBasic(role, level, format, output string) *slog.Logger {
	return NewLogger(role, Config{Level: level, Format: format, Output: output})
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func createWriter(cfg Config) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.File == nil {
			fmt.Fprintln(os.Stderr, "logging: output=file requires a file config, falling back to stdout")
			return os.Stdout
		}
		if err := os.MkdirAll(cfg.File.Directory, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "logging: creating log directory: %v, falling back to stdout\n", err)
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   filepath.Join(cfg.File.Directory, cfg.File.Filename),
			MaxSize:    orDefault(cfg.File.MaxSizeMB, 50),
			MaxBackups: cfg.File.MaxFiles,
			MaxAge:     cfg.File.MaxAgeDay,
			Compress:   cfg.File.Compress,
		}
	case "", "stdout":
		return os.Stdout
	default:
		fmt.Fprintf(os.Stderr, "logging: unknown output %q, falling back to stdout\n", cfg.Output)
		return os.Stdout
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// EnvOr reads an environment variable, falling back to def. cmd/player and
// cmd/view use it to read their log level from the environment.
func EnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvOrInt is EnvOr for integer-valued environment variables.
func EnvOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
