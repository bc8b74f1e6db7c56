package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"salonbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	app := config.AppConfig{Name: "salonbook", Environment: "test", Version: "1.0.0"}

	cases := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"Defaults", config.LoggingConfig{}},
		{"Stderr", config.LoggingConfig{Level: "debug", Output: "stderr"}},
		{"Console", config.LoggingConfig{Level: "warn", Format: "console"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, closer, err := New(tc.cfg, app)
			require.NoError(t, err)
			assert.NotNil(t, logger)
			assert.Nil(t, closer)
		})
	}

	t.Run("File", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "salonbook.log")
		logger, closer, err := New(config.LoggingConfig{Level: "error", Output: "file", FilePath: logPath}, app)
		require.NoError(t, err)
		require.NotNil(t, closer)

		logger.Error().Msg("disk full")
		require.NoError(t, closer.Close())

		raw, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"app":"salonbook"`)
		assert.Contains(t, string(raw), "disk full")
	})

	t.Run("FileWithoutPath", func(t *testing.T) {
		_, _, err := New(config.LoggingConfig{Output: "file"}, app)
		assert.Error(t, err)
	})

	t.Run("UnknownOutput", func(t *testing.T) {
		_, _, err := New(config.LoggingConfig{Output: "syslog"}, app)
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	Component(&base, "sweeper").Info().Msg("tick")
	assert.Contains(t, buf.String(), `"component":"sweeper"`)

	assert.NotNil(t, Component(nil, "x"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	fallback := zerolog.Nop()

	assert.Same(t, &fallback, FromContext(context.Background(), &fallback))

	ctx := WithRequestID(context.Background(), &base, "req-1")
	FromContext(ctx, &fallback).Info().Msg("hold created")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	assert.NotNil(t, FromContext(context.Background(), nil))
}
