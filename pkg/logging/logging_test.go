package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" warning ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, slog.LevelInfo, "JSON")).Info("Match formed", "match_id", "m1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "Match formed" || line["match_id"] != "m1" {
		t.Errorf("Unexpected record: %v", line)
	}

	buf.Reset()
	t.Setenv("NO_COLOR", "1")
	logger := slog.New(NewHandler(&buf, slog.LevelWarn, "text"))
	logger.Info("dropped")
	logger.Warn("Chat fan-out failed", "match_id", "m1")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("Info record should be filtered at warn level")
	}
	if !strings.Contains(out, "Chat fan-out failed") || !strings.Contains(out, "match_id=m1") {
		t.Errorf("Unexpected text output: %q", out)
	}
}
