package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_JSONWithServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: DEBUG, Output: &buf, Service: "bookings"})

	log.Component("admission").Debug("lane started", "key", "dr-a|2024-01-15")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry[SERVICE] != "bookings" {
		t.Errorf("expected service attr, got %v", entry[SERVICE])
	}
	if entry[COMPONENT] != "admission" {
		t.Errorf("expected component attr, got %v", entry[COMPONENT])
	}
	if entry["key"] != "dr-a|2024-01-15" {
		t.Errorf("expected key attr, got %v", entry["key"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: WARN, Output: &buf})

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	log.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn should pass at warn level")
	}
}

func TestNew_TextFormatAndLenientLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: " Warning ", Format: TEXT, Output: &buf})

	log.Info("dropped")
	log.Warn("kept", "resource_id", "dr-a")

	out := buf.String()
	if json.Valid(buf.Bytes()) {
		t.Errorf("expected text output, got %q", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte("resource_id=dr-a")) || bytes.Contains(buf.Bytes(), []byte("dropped")) {
		t.Errorf("unexpected output %q", out)
	}
}
