package cli

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"pressroom/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestNewLogger_TextAndUnknownLevel(t *testing.T) {
	var buf bytes.Buffer

	log := newLogger(config.LogConfig{Level: "chatty", Format: "text"}, &buf)
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))

	log.Info("started")
	assert.Contains(t, buf.String(), "msg=started")
}

func TestPrompt(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("  alice \nbob"))
	var out bytes.Buffer

	first, err := prompt(in, &out, "Username: ")
	require.NoError(t, err)
	assert.Equal(t, "alice", first)
	assert.Equal(t, "Username: ", out.String())

	// last line without newline
	second, err := prompt(in, &out, "")
	require.NoError(t, err)
	assert.Equal(t, "bob", second)

	_, err = prompt(in, &out, "")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "createsuperuser", "bot"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
