package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	testCases := []struct {
		name  string
		env   string
		level string
		want  zapcore.Level
	}{
		{"default info", "", "", zapcore.InfoLevel},
		{"debug", "development", "debug", zapcore.DebugLevel},
		{"upper case", "production", "WARN", zapcore.WarnLevel},
		{"production error", "production", "error", zapcore.ErrorLevel},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := New(tc.env, tc.level)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !logger.Core().Enabled(tc.want) {
				t.Errorf("level %v should be enabled", tc.want)
			}
			if tc.want > zapcore.DebugLevel && logger.Core().Enabled(tc.want-1) {
				t.Errorf("level %v should be disabled", tc.want-1)
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
