package logging

import (
	"testing"

	"lending-regime-advisor/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for level, want := range cases {
		log := New(config.LoggingConfig{Level: level})
		if !log.Core().Enabled(want) {
			t.Fatalf("level %q: expected %v enabled", level, want)
		}
		if want > zapcore.DebugLevel && log.Core().Enabled(want-1) {
			t.Fatalf("level %q: expected %v disabled", level, want-1)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if got := parseLevel(" WARN "); got != zapcore.WarnLevel {
		t.Fatalf("expected warn, got %v", got)
	}
	if got := parseLevel("fatal"); got != zapcore.ErrorLevel {
		t.Fatalf("expected fatal to cap at error, got %v", got)
	}
}

func TestNewConsoleFormat(t *testing.T) {
	log := New(config.LoggingConfig{Level: "debug", Format: "console"})
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug enabled")
	}
}
