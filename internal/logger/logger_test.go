package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestFileLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "flatsurf.log")
	cfg := DefaultFileConfig(logFile)
	cfg.Compress = false
	err := InitWithFileConfig("debug", cfg, false)
	if err != nil {
		t.Fatal(err)
	}
	Debug("teleport", zap.Int("edge", 3))
	Info("surface active", zap.String("id", "torus"))
	Sync()

	fp, err := os.Open(logFile)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	var lines []map[string]any
	sc := bufio.NewScanner(fp)
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("line %q is not JSON: %s", sc.Text(), err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 2 {
		t.Fatalf("want 2 entries, got %d", len(lines))
	}
	if lines[0]["msg"] != "teleport" || lines[0]["edge"] != float64(3) {
		t.Errorf("unexpected first entry %v", lines[0])
	}
	if lines[1]["id"] != "torus" || lines[1]["level"] != "info" {
		t.Errorf("unexpected second entry %v", lines[1])
	}
}

func TestLevelFilter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "warn.log")
	log := New("warn", FileConfig{Path: logFile, MaxSizeMB: 1}, false)
	log.Info("dropped")
	log.Warn("kept")
	log.Sync()
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("want exactly one entry, got %q", data)
	}
	if entry["msg"] != "kept" {
		t.Errorf("got %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithoutOutputs(t *testing.T) {
	log := New("debug", FileConfig{}, false)
	if log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger without outputs should discard everything")
	}
}
