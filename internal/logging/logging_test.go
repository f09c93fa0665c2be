package logging

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseLevel(tc.input), "level %q", tc.input)
	}
}

func TestInitSetsGlobalLevel(t *testing.T) {
	t.Cleanup(func() { Init(Config{Level: "info", Format: "json"}) })

	Init(Config{Level: "debug", Format: "json"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.True(t, IsLevelEnabled(zerolog.InfoLevel))

	Init(Config{Level: "error", Format: "json"})
	assert.False(t, IsLevelEnabled(zerolog.InfoLevel))
}

func TestSelectWriterAutoWithoutTerminal(t *testing.T) {
	orig := isTerminalFn
	t.Cleanup(func() { isTerminalFn = orig })
	isTerminalFn = func(int) bool { return false }

	w := selectWriter("auto")
	assert.Equal(t, os.Stderr, w)

	isTerminalFn = func(int) bool { return true }
	_, isConsole := selectWriter("auto").(zerolog.ConsoleWriter)
	assert.True(t, isConsole)
}

func TestWithRequestID(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "")
	require.NotEmpty(t, id)
	assert.Equal(t, id, RequestID(ctx))

	ctx, id = WithRequestID(context.Background(), "  fixed-id ")
	assert.Equal(t, "fixed-id", id)
	assert.Equal(t, "fixed-id", RequestID(ctx))

	assert.Empty(t, RequestID(context.Background()))
}
