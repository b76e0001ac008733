package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
)

// ServiceName is attached to every log entry as the "service" field.
const ServiceName = "actuator-core"

// redacted replaces the value of any attribute whose key names a secret.
const redacted = "[REDACTED]"

// Logger is a slog.Logger that shares one adjustable level with every
// logger derived from it.
//
// All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a Logger writing to stdout, or stderr when cfg.Output says
// so.
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination; cfg.Output is
// ignored. JSON is the default format, "text" selects logfmt-style
// output. An unknown level falls back to info.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	level := new(slog.LevelVar)
	if l, ok := parseLevel(cfg.Level); ok {
		level.Set(l)
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redactSecrets}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	base := slog.New(h).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
	return &Logger{Logger: base, level: level}
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info"}, "dev")
}

// With returns a child logger with extra attributes. The child shares the
// parent's level.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component returns a child logger tagged with component=name.
//
//	log.Component("dispatcher").Info("tick", "queued", 3) // component=dispatcher
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Level returns the current minimum level as a lowercase name.
func (l *Logger) Level() string {
	return strings.ToLower(l.level.Level().String())
}

// SetLevel changes the minimum level for this logger and every logger
// sharing its root.
func (l *Logger) SetLevel(name string) error {
	lvl, ok := parseLevel(name)
	if !ok {
		return fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
	l.level.Set(lvl)
	return nil
}

// parseLevel maps a config level name to a slog.Level. An empty name means
// info.
func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// redactSecrets masks attributes such as "token" or "jwt_secret" so a
// careless log call cannot leak credentials.
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range []string{"password", "secret", "token", "authorization"} {
		if strings.Contains(key, s) {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}
