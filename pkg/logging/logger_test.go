package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DEBUG,
		"info":  INFO,
		"warn":  WARN,
		"error": ERROR,
		"":      INFO,
		"bogus": INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(WARN, false)
	log.SetOutput(&buf)

	log.Debug("dropped")
	log.Info("dropped too")
	log.Warn("kept")
	log.Error("also kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("messages below the level should be suppressed: %s", out)
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "also kept") {
		t.Errorf("messages at or above the level should appear: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, true)
	log.SetOutput(&buf)

	log.Info("producer registered", map[string]interface{}{"uuid": "abc"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (%s)", err, buf.String())
	}
	if entry.Level != "INFO" {
		t.Errorf("unexpected level %q", entry.Level)
	}
	if entry.Message != "producer registered" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if entry.Fields["uuid"] != "abc" {
		t.Errorf("fields not carried: %#v", entry.Fields)
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, true)
	log.SetOutput(&buf)

	log.WithField("component", "store").Info("opened")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Fields["component"] != "store" {
		t.Errorf("bound field missing: %#v", entry.Fields)
	}
}
