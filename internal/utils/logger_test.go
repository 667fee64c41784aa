package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerDefaults(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{})
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info level enabled by default")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level disabled by default")
	}
}

func TestNewLoggerLevelParsing(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level enabled")
	}
}

func TestNewLoggerUnknownLevelFallsBack(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "shout"})
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected fallback to info level")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug disabled after fallback")
	}
}

func TestNewLoggerJSONEncoding(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Encoding: "json", ServiceName: "chathub-test"})
	if err != nil {
		t.Fatalf("failed to build json logger: %v", err)
	}
	defer logger.Sync()
}
