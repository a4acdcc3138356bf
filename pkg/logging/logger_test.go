// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("with config", func(t *testing.T) {
		logger := NewLogger(&Config{Level: slog.LevelDebug, Format: FormatJSON, Output: os.Stdout, Version: "1.0.0"})
		require.NotNil(t, logger)
		_, ok := logger.(*slogLogger)
		assert.True(t, ok)
	})

	t.Run("with nil config", func(t *testing.T) {
		logger := NewLogger(nil)
		require.NotNil(t, logger)
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, slog.LevelInfo, config.Level)
	assert.Equal(t, FormatText, config.Format)
	assert.Equal(t, "unknown", config.Version)
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "worker-01", "worker-01"},
		{"newline", "evil\nINFO injected", "evil INFO injected"},
		{"tab and cr", "a\tb\rc", "a b c"},
		{"control char dropped", "a\x07b", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeLogValue(tt.input))
		})
	}
}

func TestLoggerOutput(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logger := &slogLogger{logger: slog.New(handler).With("service", "movableq-coordinator")}

		logger.Info("worker requested job", "worker", "miner-7")

		var buf2 bytes.Buffer
		buf2.Write(buf.Bytes())
		assert.True(t, json.Valid(buf.Bytes()))
		assert.Contains(t, buf.String(), "worker requested job")
		assert.Contains(t, buf.String(), "\"service\":\"movableq-coordinator\"")
	})
}

func TestLogError(t *testing.T) {
	logger := NewLogger(&Config{Level: slog.LevelDebug, Format: FormatText, Output: os.Stdout, Version: "test"})

	t.Run("with error", func(t *testing.T) {
		LogError(logger, errors.New("boom"), "submit_job")
	})

	t.Run("nil error is a no-op", func(t *testing.T) {
		LogError(logger, nil, "submit_job")
	})
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	logger := NewLogger(DefaultConfig())
	scoped := logger.WithContext(ctx)
	assert.NotNil(t, scoped)
}

func TestNoOpLogger(t *testing.T) {
	logger := NoOpLogger{}
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	assert.Equal(t, NoOpLogger{}, logger.With("k", "v"))
	assert.Equal(t, NoOpLogger{}, logger.WithContext(context.Background()))
}
