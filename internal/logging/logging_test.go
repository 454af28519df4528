package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/tireintel/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
		wantErr  bool
	}{
		{input: "debug", expected: zapcore.DebugLevel},
		{input: "info", expected: zapcore.InfoLevel},
		{input: "warn", expected: zapcore.WarnLevel},
		{input: "warning", expected: zapcore.WarnLevel},
		{input: "error", expected: zapcore.ErrorLevel},
		{input: "trace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLevel(%s) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%s) error = %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("ParseLevel(%s) = %v, expected %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestNewOverrideTakesPrecedence(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "error", Format: "console"}, "debug")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug level to be enabled by the override")
	}
}

func TestNewDefaults(t *testing.T) {
	logger, err := New(config.LoggingConfig{}, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(zap.DebugLevel) || !logger.Core().Enabled(zap.InfoLevel) {
		t.Error("expected info level by default")
	}
}

func TestNewInvalidSettings(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}, ""); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}, ""); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestNewOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tireintel.log")

	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", OutputFile: path}, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("written to file", zap.String("op", "logging.TestNewOutputFile"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %s", data)
	}
}
