package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"invalid", LevelInfo}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFileLoggerRespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := New(LevelInfo, logPath, "server")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("client connected")
	logger.Debug("should not appear")
	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "client connected") {
		t.Errorf("Log file missing info message")
	}
	if strings.Contains(contentStr, "should not appear") {
		t.Errorf("Log file contains debug message when level is INFO")
	}
	if !strings.Contains(contentStr, "[server]") {
		t.Errorf("Log file missing prefix")
	}
}

func TestWithPrefixChains(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := New(LevelInfo, logPath, "server")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.WithPrefix("room").Info("broadcast")
	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "[server:room]") {
		t.Errorf("Log file missing combined prefix, got: %s", content)
	}
}

func TestSetLevelTakesEffect(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := New(LevelInfo, logPath, "")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("debug1")
	logger.SetLevel(LevelDebug)
	logger.Debug("debug2")
	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	contentStr := string(content)
	if strings.Contains(contentStr, "debug1") {
		t.Errorf("debug1 should not appear (level was INFO)")
	}
	if !strings.Contains(contentStr, "debug2") {
		t.Errorf("debug2 should appear (level changed to DEBUG)")
	}
}

func TestDisabledAndGlobalLoggersDoNotPanic(t *testing.T) {
	logger, err := New(LevelNone, "", "test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()
	logger.Debug("debug")
	logger.Error("error")

	if Global() == nil {
		t.Errorf("Global() returned nil")
	}
	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
}
