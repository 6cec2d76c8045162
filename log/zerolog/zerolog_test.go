package zerolog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/arcusq/go-task-queue/core"
	rzerolog "github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"
)

func TestLogger_ForwardsLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(rzerolog.New(&buf))

	logger.Warn("time domain now moved backwards",
		core.F("queue", "compositing"),
		core.F("delta_ms", 12))

	var entry map[string]any
	if err := sonnet.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	if entry["message"] != "time domain now moved backwards" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["queue"] != "compositing" {
		t.Errorf("queue field = %v, want compositing", entry["queue"])
	}
	if entry["delta_ms"] != float64(12) {
		t.Errorf("delta_ms field = %v, want 12", entry["delta_ms"])
	}
}

func TestLogger_RespectsZerologLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(rzerolog.New(&buf).Level(rzerolog.ErrorLevel))

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Error("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("emitted %d lines, want 1: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "kept") {
		t.Errorf("surviving line does not contain the error message: %q", lines[0])
	}
}
