// Package logger provides the CLI front-end's logging facade: a small
// interface over log/slog with functional-option configuration and
// accurate caller source locations even through wrapper and context calls.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the facade used throughout the CLI. Every method logs at the
// named level, attributing the log line to its caller rather than to this
// package's internals.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

type options struct {
	debug  bool
	format string
	writer io.Writer
	quiet  bool
}

// Option configures a Logger built by NewLogger.
type Option func(*options)

// WithDebug enables debug-level output and source-location attribution.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithFormat selects "text" (the default) or "json" output.
func WithFormat(format string) Option { return func(o *options) { o.format = format } }

// WithWriter redirects output away from os.Stderr; primarily for tests.
func WithWriter(w io.Writer) Option { return func(o *options) { o.writer = w } }

// WithQuiet suppresses the destination normally fanned out to in addition
// to writer (used in tests to avoid also writing to stderr).
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

type logger struct {
	handler slog.Handler
}

// NewLogger builds a Logger from the given options. Without WithWriter it
// writes to os.Stderr only. With WithWriter, slog-multi fans out to both
// the configured writer and stderr, unless WithQuiet makes the writer the
// sole destination.
func NewLogger(opts ...Option) Logger {
	o := &options{format: "text", writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: o.debug}

	newHandler := func(w io.Writer) slog.Handler {
		if o.format == "json" {
			return slog.NewJSONHandler(w, handlerOpts)
		}
		return slog.NewTextHandler(w, handlerOpts)
	}

	var handler slog.Handler
	if o.quiet || o.writer == os.Stderr {
		handler = newHandler(o.writer)
	} else {
		handler = slogmulti.Fanout(newHandler(o.writer), newHandler(os.Stderr))
	}

	return &logger{handler: handler}
}

// callerSource resolves the pc of the caller skip frames above
// callerSource itself, so logger methods and the package-level context
// helpers all report the application's call site instead of this file.
func callerSource(skip int) uintptr {
	var pcs [1]uintptr
	runtime.Callers(skip+2, pcs[:])
	return pcs[0]
}

func (l *logger) log(level slog.Level, skip int, msg string, args ...any) {
	if !l.handler.Enabled(context.Background(), level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, callerSource(skip))
	r.Add(args...)
	_ = l.handler.Handle(context.Background(), r)
}

func (l *logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, 2, msg, args...) }
func (l *logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, 2, msg, args...) }
func (l *logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, 2, msg, args...) }
func (l *logger) Error(msg string, args ...any) { l.log(slog.LevelError, 2, msg, args...) }

func (l *logger) Debugf(format string, args ...any) { l.log(slog.LevelDebug, 2, fmt.Sprintf(format, args...)) }
func (l *logger) Infof(format string, args ...any)  { l.log(slog.LevelInfo, 2, fmt.Sprintf(format, args...)) }
func (l *logger) Warnf(format string, args ...any)  { l.log(slog.LevelWarn, 2, fmt.Sprintf(format, args...)) }
func (l *logger) Errorf(format string, args ...any) { l.log(slog.LevelError, 2, fmt.Sprintf(format, args...)) }

func (l *logger) With(args ...any) Logger {
	return &logger{handler: l.handler.WithAttrs(argsToAttrs(args))}
}

func (l *logger) WithGroup(name string) Logger {
	return &logger{handler: l.handler.WithGroup(name)}
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, _ := args[i].(string)
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

type contextKey struct{}

// WithLogger attaches logger to ctx for retrieval by the package-level
// helpers below.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

var defaultLogger = NewLogger()

func fromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return defaultLogger
}

// The package-level helpers below let call sites log through a context
// without threading a Logger value explicitly; they delegate to whatever
// Logger (if any) WithLogger attached to ctx.

func Debug(ctx context.Context, msg string, args ...any) {
	if l, ok := fromContext(ctx).(*logger); ok {
		l.log(slog.LevelDebug, 2, msg, args...)
		return
	}
	fromContext(ctx).Debug(msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	if l, ok := fromContext(ctx).(*logger); ok {
		l.log(slog.LevelInfo, 2, msg, args...)
		return
	}
	fromContext(ctx).Info(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	if l, ok := fromContext(ctx).(*logger); ok {
		l.log(slog.LevelWarn, 2, msg, args...)
		return
	}
	fromContext(ctx).Warn(msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	if l, ok := fromContext(ctx).(*logger); ok {
		l.log(slog.LevelError, 2, msg, args...)
		return
	}
	fromContext(ctx).Error(msg, args...)
}

func Debugf(ctx context.Context, format string, args ...any) { Debug(ctx, fmt.Sprintf(format, args...)) }
func Infof(ctx context.Context, format string, args ...any)  { Info(ctx, fmt.Sprintf(format, args...)) }
func Warnf(ctx context.Context, format string, args ...any)  { Warn(ctx, fmt.Sprintf(format, args...)) }
func Errorf(ctx context.Context, format string, args ...any) { Error(ctx, fmt.Sprintf(format, args...)) }
