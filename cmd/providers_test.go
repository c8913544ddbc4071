package cmd

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/infra/telemetry"
)

func TestFanoutHandler(t *testing.T) {
	var a, b bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(&fanoutHandler{
		level: level,
		handlers: []slog.Handler{
			slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
			slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelDebug}),
		},
	}).With("component", "test")

	logger.Debug("HIDDEN")
	logger.Info("DISPATCH_COMPLETED", "id", "d-1")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		assert.NotContains(t, buf.String(), "HIDDEN")
		assert.Contains(t, buf.String(), `"msg":"DISPATCH_COMPLETED"`)
		assert.Contains(t, buf.String(), `"component":"test"`)
	}

	level.Set(slog.LevelDebug)
	logger.Debug("VISIBLE")
	assert.Contains(t, a.String(), "VISIBLE")
}

func TestProvideLogger_WithoutTelemetry(t *testing.T) {
	cfg := config.Default()
	level := new(slog.LevelVar)

	logger := ProvideLogger(cfg, level, &telemetry.Telemetry{})
	_, fanout := logger.Handler().(*fanoutHandler)
	assert.False(t, fanout)
}
