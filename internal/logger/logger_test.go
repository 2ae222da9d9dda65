package logger

import (
	"testing"

	"estimator/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestNewAppliesLevel(t *testing.T) {
	log, err := New(config.LoggerConfig{Level: "warn", Encoding: "json"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled")
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New(config.LoggerConfig{Level: "loud", Encoding: "console", Development: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled after fallback")
	}
}
