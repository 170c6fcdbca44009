package debuglog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"off", LevelOff},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetupWritesLeveledLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	if err := Setup(LevelInfo, path); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer Close()

	Debugf("should be suppressed")
	Infof("hello %s", "world")
	Errorf("boom")

	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "suppressed") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(content, "[INFO] hello world") {
		t.Errorf("info line missing: %q", content)
	}
	if !strings.Contains(content, "[ERROR] boom") {
		t.Errorf("error line missing: %q", content)
	}
}

func TestSetupOffDisablesLogging(t *testing.T) {
	if err := Setup(LevelOff, ""); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if GetLevel() != LevelOff {
		t.Errorf("level = %v, want OFF", GetLevel())
	}
	// must not panic without an open file
	Infof("dropped")
}
