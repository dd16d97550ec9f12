package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"DEBUG", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"info", log.InfoLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitWriter(t *testing.T) {
	previous := Default()
	defer func() {
		mu.Lock()
		current = previous
		mu.Unlock()
		log.SetDefault(previous)
	}()

	var buf bytes.Buffer
	l := InitWriter(&buf, "nmjl-test", "warn")
	if Default() != l {
		t.Fatal("InitWriter should replace the default logger")
	}

	Default().Info("hidden")
	Default().Warn("shown", "pattern", "2025-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "2025-1") {
		t.Errorf("warn message missing: %s", out)
	}

	SetLevel("debug")
	if Default().GetLevel() != log.DebugLevel {
		t.Error("SetLevel should update the default logger")
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != Default() {
		t.Error("Or(nil) should return the default logger")
	}
	d := Discard()
	if Or(d) != d {
		t.Error("Or should keep a non-nil logger")
	}
}
