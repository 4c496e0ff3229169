package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestTeeHandler(t *testing.T) {
	var info, warn bytes.Buffer
	log := slog.New(teeHandler{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}).With("component", "test")

	log.Info("hello")
	log.Warn("careful")

	if !strings.Contains(info.String(), "msg=hello") || !strings.Contains(info.String(), "msg=careful") {
		t.Errorf("info sink = %q", info.String())
	}
	if strings.Contains(warn.String(), "msg=hello") || !strings.Contains(warn.String(), "msg=careful") {
		t.Errorf("warn sink = %q", warn.String())
	}
	if !strings.Contains(warn.String(), "component=test") {
		t.Errorf("attrs not propagated: %q", warn.String())
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log, closer, err := newLogger("info", path)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("written", "guild", "g1")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "msg=written") || !strings.Contains(string(data), "guild=g1") {
		t.Errorf("log file = %q", data)
	}
}
