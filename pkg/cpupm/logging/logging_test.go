package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{" error ", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, logging.ErrInvalidLevel) {
					t.Fatalf("ParseLevel(%q) error = %v, want ErrInvalidLevel", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInit_WritesComponentLogs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "cpupm.log")

	// Obtained before Init, like package-level loggers.
	early := logging.Get("early-component")

	err := logging.Init(logging.Config{
		Level:      "info",
		Path:       logPath,
		Components: map[string]string{"quiet-component": "error"},
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = logging.Close() }()

	early.Info("set governor", "governor", "powersave")
	logging.Get("quiet-component").Info("should be filtered")
	logging.Get("quiet-component").Error("should appear")
	logging.Get("other").Debug("below level")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)

	for _, want := range []string{"early-component", "set governor", "governor=powersave", "should appear"} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
	for _, unwanted := range []string{"should be filtered", "below level"} {
		if strings.Contains(content, unwanted) {
			t.Errorf("log contains %q:\n%s", unwanted, content)
		}
	}
}

func TestInit_InvalidLevels(t *testing.T) {
	dir := t.TempDir()

	if err := logging.Init(logging.Config{Level: "loud", Path: filepath.Join(dir, "a.log")}); err == nil {
		t.Error("Init() with bad level error = nil")
	}
	if err := logging.Init(logging.Config{
		Path:       filepath.Join(dir, "b.log"),
		Components: map[string]string{"cpu": "loud"},
	}); err == nil {
		t.Error("Init() with bad component level error = nil")
	}
	_ = logging.Close()
}

func TestGet_BeforeInitDiscards(t *testing.T) {
	_ = logging.Close()

	logger := logging.Get("discard-test")
	if logger.Component() != "discard-test" {
		t.Errorf("Component() = %q", logger.Component())
	}
	// Must not panic.
	logger.Warn("nobody hears this")
	logger.With("core", 1).Error("nor this")
}

func TestGet_SameInstance(t *testing.T) {
	if logging.Get("same") != logging.Get("same") {
		t.Error("Get() returned different loggers for the same component")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if !strings.HasSuffix(cfg.Path, filepath.Join("cpupm", "cpupm.log")) {
		t.Errorf("Path = %q", cfg.Path)
	}
}
