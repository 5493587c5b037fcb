package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

// Options configures the structured logger. LOG_FORMAT=console switches to
// human readable output for local runs.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Output      io.Writer
}

// Logger writes JSON entries enriched with fields carried on the context.
// A nil *Logger discards everything.
type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

type fieldsKey struct{}

// fields is an ordered key/value list; later writes of a key replace earlier ones.
type fields []any

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(env.Get("LOG_FORMAT", "json"), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()

	return &Logger{base: base, warnStack: opts.WarnStack}
}

func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return withFields(ctx, key, value)
}

func (l *Logger) WithFields(ctx context.Context, kv map[string]any) context.Context {
	pairs := make([]any, 0, len(kv)*2)
	for k, v := range kv {
		pairs = append(pairs, k, v)
	}
	return withFields(ctx, pairs...)
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return withFields(ctx, "request_id", requestID)
}

func (l *Logger) WithCartSession(ctx context.Context, sessionID string) context.Context {
	return withFields(ctx, "cart_session", sessionID)
}

// WithAdmin tags entries with the authenticated back-office account.
func (l *Logger) WithAdmin(ctx context.Context, email string) context.Context {
	return withFields(ctx, "admin", email)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	if l == nil {
		return
	}
	l.emit(ctx, l.base.Debug()).Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	if l == nil {
		return
	}
	l.emit(ctx, l.base.Info()).Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	if l == nil {
		return
	}
	event := l.emit(ctx, l.base.Warn())
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error always records the goroutine stack alongside err.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	if l == nil {
		return
	}
	event := l.emit(ctx, l.base.Error())
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func (l *Logger) emit(ctx context.Context, event *zerolog.Event) *zerolog.Event {
	if ctx == nil {
		return event
	}
	if carried, ok := ctx.Value(fieldsKey{}).(fields); ok && len(carried) > 0 {
		event = event.Fields([]any(carried))
	}
	return event
}

func withFields(ctx context.Context, pairs ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	current, _ := ctx.Value(fieldsKey{}).(fields)
	next := make(fields, len(current), len(current)+len(pairs))
	copy(next, current)

	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		next = next.set(key, pairs[i+1])
	}
	return context.WithValue(ctx, fieldsKey{}, next)
}

func (f fields) set(key string, value any) fields {
	for i := 0; i+1 < len(f); i += 2 {
		if f[i] == key {
			f[i+1] = value
			return f
		}
	}
	return append(f, key, value)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
