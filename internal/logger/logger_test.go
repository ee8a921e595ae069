package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		env     string
		debugOn bool
	}{
		{"production", false},
		{"development", true},
		{"", true},
	}
	for _, tt := range tests {
		log, err := New(tt.env)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", tt.env, err)
		}
		if got := log.Core().Enabled(zapcore.DebugLevel); got != tt.debugOn {
			t.Errorf("New(%q): debug enabled = %v, want %v", tt.env, got, tt.debugOn)
		}
		if !log.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("New(%q): info must be enabled", tt.env)
		}
	}
}

func TestMust(t *testing.T) {
	if Must("production") == nil {
		t.Fatal("Must returned nil")
	}
}
