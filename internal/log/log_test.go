package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestConfigure_JSONFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "json", LevelInfo)
	t.Cleanup(func() { Configure(nil, "json", LevelInfo) })

	Debug("hidden")
	Info("fetched", "feed", "events", "rows", 3, "took", 1500*time.Millisecond)
	Error("failed", errors.New("boom"), "feed", "venues")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["message"] != "fetched" || first["feed"] != "events" || first["rows"] != float64(3) {
		t.Errorf("unexpected fields: %v", first)
	}
	if first["level"] != "info" {
		t.Errorf("level = %v", first["level"])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if second["error"] != "boom" || second["level"] != "error" {
		t.Errorf("unexpected fields: %v", second)
	}
}

func TestWith_CarriesFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "json", LevelDebug)
	t.Cleanup(func() { Configure(nil, "json", LevelInfo) })

	l := With("run_id", "abc")
	l.Debug("step", "stage", "dedupe", "odd")

	var got map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["run_id"] != "abc" || got["stage"] != "dedupe" {
		t.Errorf("unexpected fields: %v", got)
	}
	if _, ok := got["odd"]; ok {
		t.Error("dangling key should be ignored")
	}
}
