package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_SourceLocation(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(Logger)
	}{
		{"Info", func(l Logger) { l.Info("test message") }},
		{"Debug", func(l Logger) { l.Debug("debug message") }},
		{"Warn", func(l Logger) { l.Warn("warn message") }},
		{"Error", func(l Logger) { l.Error("error message") }},
		{"Infof", func(l Logger) { l.Infof("formatted %s", "message") }},
		{"Debugf", func(l Logger) { l.Debugf("debug %d", 42) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(WithDebug(), WithFormat("text"), WithWriter(&buf), WithQuiet())

			tt.logFunc(l)

			output := buf.String()
			require.Contains(t, output, "logger_test.go:")
			require.NotContains(t, output, "internal/logger/logger.go")
		})
	}
}

func TestLogger_ContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithDebug(), WithFormat("text"), WithWriter(&buf), WithQuiet())
	ctx := WithLogger(context.Background(), l)

	Info(ctx, "context info message")
	require.Contains(t, buf.String(), "context info message")
}

func TestLogger_ProductionModeHidesSource(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat("text"), WithWriter(&buf), WithQuiet())
	l.Info("production mode")

	require.False(t, strings.Contains(buf.String(), "source="))
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat("text"), WithWriter(&buf), WithQuiet())
	l.With("key", "value").Info("with attributes")

	require.Contains(t, buf.String(), "key=value")
}

func TestLogger_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat("text"), WithWriter(&buf), WithQuiet())
	l.WithGroup("grp").With("key", "value").Info("with group")

	require.Contains(t, buf.String(), "grp.key=value")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat("json"), WithWriter(&buf), WithQuiet())
	l.Info("json message")

	require.Contains(t, buf.String(), `"msg":"json message"`)
}
