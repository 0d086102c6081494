package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{"error", []string{"evicted"}, []string{"miss", "loaded", "dropped"}},
		{"warn", []string{"evicted", "dropped"}, []string{"miss", "loaded"}},
		{"info", []string{"evicted", "dropped", "loaded"}, []string{"miss"}},
		{"debug", []string{"evicted", "dropped", "loaded", "miss"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			if err := InitWithFileConfig(tt.level, FileConfig{}, &buf); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}

			log := Named("morphcache")
			log.Debug("miss")
			log.Info("loaded")
			log.Warn("dropped")
			log.Error("evicted")
			Sync()

			out := buf.String()
			for _, exp := range tt.expected {
				if !strings.Contains(out, exp) {
					t.Errorf("expected %q in output", exp)
				}
			}
			for _, exc := range tt.excluded {
				if strings.Contains(out, exc) {
					t.Errorf("unexpected %q in output at level %s", exc, tt.level)
				}
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "bodymorph.log")

	cfg := FileConfig{Path: logFile, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}
	if err := InitWithFileConfig("info", cfg, nil); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}

	Named("weights").Info("loaded characters")
	Sync()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"INFO", "weights", "loaded characters"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/test.log")

	if cfg.Path != "/tmp/test.log" {
		t.Errorf("expected path /tmp/test.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 50 || cfg.MaxBackups != 3 || cfg.MaxAgeDays != 7 {
		t.Errorf("unexpected rotation settings: %+v", cfg)
	}
	if !cfg.Compress {
		t.Error("expected Compress to be true")
	}
}
