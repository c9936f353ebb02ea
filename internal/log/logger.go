// Package log configures structured logging and carries request identifiers
// through contexts.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/yksoni-monk/poke/internal/config"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
)

// Option configures logger construction.
type Option func(*settings)

type settings struct {
	writer io.Writer
	color  bool
}

// WithWriter sets the log destination. Defaults to stderr so command output
// on stdout stays machine readable.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.writer = w }
}

// WithColor toggles ANSI colours in the pretty format.
func WithColor(on bool) Option {
	return func(s *settings) { s.color = on }
}

// New builds a logger from the application configuration.
func New(cfg config.AppConfig, opts ...Option) *slog.Logger {
	return NewWithFormat(cfg.LogFormat(), cfg.LogLevel(), opts...)
}

// NewWithFormat builds a logger for the given format and level name.
func NewWithFormat(format config.LogFormat, level string, opts ...Option) *slog.Logger {
	s := settings{
		writer: os.Stderr,
		color:  os.Getenv("NO_COLOR") == "",
	}
	for _, opt := range opts {
		opt(&s)
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	switch format {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(s.writer, hopts)
	default:
		handler = newTerminalHandler(s.writer, hopts, s.color)
	}
	return slog.New(contextHandler{Handler: handler})
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
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

// Configure builds a logger from cfg and installs it as the slog default.
func Configure(cfg config.AppConfig, opts ...Option) *slog.Logger {
	l := New(cfg, opts...)
	slog.SetDefault(l)
	return l
}

// contextHandler adds the correlation and request IDs stored in the record's
// context to every record.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String(string(correlationIDKey), id))
	}
	if id := RequestID(ctx); id != "" {
		r.AddAttrs(slog.String(string(requestIDKey), id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
