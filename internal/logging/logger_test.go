package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trawl/internal/config"
	"trawl/internal/logging"
	"trawl/internal/services"
)

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "discovery").Info("artist accepted",
		logging.String(logging.FieldArtistID, "a1"),
		logging.Int(logging.FieldDepth, 2),
		logging.String("name", "The Band"),
	)

	line := buf.String()
	for _, fragment := range []string{"INFO discovery: artist accepted", "artist_id=a1", "depth=2", `name="The Band"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestJSONLoggerUsesStableKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("slow catalog", logging.Int("attempt", 2))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload["msg"] != "slow catalog" {
		t.Fatalf("unexpected msg %v", payload["msg"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, false)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "trawl.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Fatalf("expected message in log file, got %q", data)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := logging.New(logging.Options{Format: "console", Writer: &buf})
	logging.WarnWithContext(logger, "redis unavailable", "checkpoint_fallback",
		logging.String(logging.FieldImpact, "progress stored on local disk"))

	line := buf.String()
	for _, fragment := range []string{"event_type=checkpoint_fallback", "error_hint=", `impact="progress stored on local disk"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Count(line, "impact=") != 1 {
		t.Fatalf("impact should not be duplicated: %q", line)
	}
}

func TestErrorWithContextAddsImpact(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := logging.New(logging.Options{Format: "json", Writer: &buf})
	logging.ErrorWithContext(logger, "session aborted", "session_aborted", logging.Error(errors.New("boom")))

	line := buf.String()
	for _, fragment := range []string{`"event_type":"session_aborted"`, `"error_hint":`, `"impact":`, `"error":"boom"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestWithContextAddsSessionFields(t *testing.T) {
	var buf bytes.Buffer
	base, _ := logging.New(logging.Options{Format: "console", Writer: &buf})
	ctx := services.WithSession(context.Background(), "jazz")
	ctx = services.WithRunID(ctx, "r1")

	logging.WithContext(ctx, base).Info("tick")
	if !strings.Contains(buf.String(), "session=jazz") || !strings.Contains(buf.String(), "run_id=r1") {
		t.Fatalf("expected context fields, got %q", buf.String())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should never be enabled")
	}
}
