package daemon_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/cpupm/pkg/daemon"
)

func TestRecoverFromStaleDaemon_NoPIDFile(t *testing.T) {
	dir := t.TempDir()

	err := daemon.RecoverFromStaleDaemon(filepath.Join(dir, "cpupmd.pid"), filepath.Join(dir, "cpupmd.sock"), dir)
	if err != nil {
		t.Errorf("Expected nil when no PID file exists, got %v", err)
	}
}

func TestRecoverFromStaleDaemon_ProcessRunning(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "cpupmd.pid")
	if err := daemon.WritePIDFile(pidPath); err != nil {
		t.Fatal(err)
	}

	err := daemon.RecoverFromStaleDaemon(pidPath, filepath.Join(dir, "cpupmd.sock"), dir)
	if !errors.Is(err, daemon.ErrDaemonAlreadyRunning) {
		t.Errorf("Expected ErrDaemonAlreadyRunning, got %v", err)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Error("PID file should not be removed while the process runs")
	}
}

func TestRecoverFromStaleDaemon_StaleProcess(t *testing.T) {
	dir := t.TempDir()
	historyDir := filepath.Join(dir, "history")
	pidPath := filepath.Join(dir, "cpupmd.pid")
	socketPath := filepath.Join(dir, "cpupmd.sock")
	lockPath := filepath.Join(historyDir, "LOCK")

	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		pidPath:                       "999999999",
		socketPath:                    "",
		daemon.StatusPath(socketPath): `{"status":"ready"}`,
		lockPath:                      "",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := daemon.RecoverFromStaleDaemon(pidPath, socketPath, historyDir); err != nil {
		t.Fatalf("Expected stale files to be cleaned, got %v", err)
	}
	for path := range files {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", filepath.Base(path))
		}
	}
}
