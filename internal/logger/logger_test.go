package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel checks string to zap level conversion, including garbage input.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  zapcore.Level
		ok    bool
	}{
		{input: "debug", want: zapcore.DebugLevel, ok: true},
		{input: " INFO ", want: zapcore.InfoLevel, ok: true},
		{input: "warn", want: zapcore.WarnLevel, ok: true},
		{input: "error", want: zapcore.ErrorLevel, ok: true},
		{input: "fatal", want: zapcore.FatalLevel, ok: true},
		{input: "loud", want: zapcore.InfoLevel, ok: false},
	}

	for _, tc := range cases {
		got, ok := ParseLogLevel(tc.input)
		require.Equal(t, tc.ok, ok, tc.input)
		require.Equal(t, tc.want, got, tc.input)
	}
}

// TestFromContext_FallsBackToGlobal ensures a bare context still yields a usable logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.NotNil(t, FromContext(context.Background()))
	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithName_AttachesNamedLogger verifies the context carries the named logger.
func TestWithName_AttachesNamedLogger(t *testing.T) {
	t.Parallel()

	ctx := WithName(context.Background(), "proximity-engine")
	require.NotSame(t, Logger(), FromContext(ctx))
}
