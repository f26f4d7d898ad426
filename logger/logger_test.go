package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestInitLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if err := InitLogger(level); err != nil {
			t.Errorf("InitLogger(%q) failed: %v", level, err)
		}
		if Log == nil {
			t.Fatalf("InitLogger(%q) left Log unset", level)
		}
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	Log = zap.NewNop()

	if err := InitLogger("loud"); err == nil {
		t.Fatal("Expected error for invalid level")
	}
	// A failed init must not replace the current logger.
	if Log == nil {
		t.Error("Log should remain usable after a failed init")
	}
}
