package talonlog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestInitWritesJSONLinesAndMirrorsConsole(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "talon.log")
	var console bytes.Buffer

	if err := Init(Config{Level: InfoLevel, Path: logPath, Console: &console}); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	WithComponent("watchdog").Info().Msg("tick complete")

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"component":"watchdog"`)) {
		t.Errorf("expected component field in log file, got: %s", raw)
	}
	if !bytes.Contains(raw, []byte(`"message":"tick complete"`)) {
		t.Errorf("expected message field in log file, got: %s", raw)
	}
	if console.Len() == 0 {
		t.Error("expected console mirror to receive output")
	}
}

func TestRotateIfNeededRenamesOversizedFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "talon.log")

	if err := os.WriteFile(logPath, bytes.Repeat([]byte("a"), maxLogBytes+1), 0o644); err != nil {
		t.Fatalf("failed to seed oversized log: %v", err)
	}
	if err := os.WriteFile(logPath+".1", []byte("stale"), 0o644); err != nil {
		t.Fatalf("failed to seed stale rotation: %v", err)
	}

	w := &rotatingWriter{path: logPath}
	if _, err := w.Write([]byte("fresh line\n")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	rotated, err := os.ReadFile(logPath + ".1")
	if err != nil {
		t.Fatalf("expected rotated file to exist: %v", err)
	}
	if len(rotated) != maxLogBytes+1 {
		t.Errorf("expected rotated file to hold the old oversized content, got %d bytes", len(rotated))
	}

	fresh, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected fresh log file to exist: %v", err)
	}
	if string(fresh) != "fresh line\n" {
		t.Errorf("expected fresh log file to contain only the new write, got %q", fresh)
	}
}

func TestTailFileReturnsLastNLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "some.log")
	content := "one\ntwo\nthree\nfour\nfive\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	got := TailFile(path, 2)
	want := "four\nfive"
	if got != want {
		t.Errorf("TailFile() = %q, want %q", got, want)
	}
}

func TestTailFileMissingReturnsEmpty(t *testing.T) {
	got := TailFile(filepath.Join(t.TempDir(), "missing.log"), 10)
	if got != "" {
		t.Errorf("expected empty string for missing file, got %q", got)
	}
}
