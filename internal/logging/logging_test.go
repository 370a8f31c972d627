package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}

	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %s, expected %s", input, got, want)
		}
	}
}

func TestSetOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "info", true)
	defer Setup("info", false)

	log.Info().Str("op", "download/service").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["op"] != "download/service" {
		t.Errorf("Expected op field, got %v", entry["op"])
	}
	if entry["message"] != "hello" {
		t.Errorf("Expected message 'hello', got %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected timestamp field")
	}
}

func TestSetOutput_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "warn", true)
	defer Setup("info", false)

	log.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected info line to be filtered at warn level, got %q", buf.String())
	}

	log.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Error("Expected warn line to be written")
	}
}
