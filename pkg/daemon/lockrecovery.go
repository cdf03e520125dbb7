package daemon

import (
	"os"
	"path/filepath"

	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
)

// RecoverFromStaleDaemon cleans up after a daemon that died without
// removing its PID file, socket and history database lock. It returns
// ErrDaemonAlreadyRunning if the recorded process is still alive.
func RecoverFromStaleDaemon(pidPath, socketPath, historyDir string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return nil //nolint:nilerr // missing or garbled PID file means nothing to recover
	}

	if IsProcessRunning(pid) {
		return ErrDaemonAlreadyRunning
	}

	logging.Get("daemon").Warn("cleaning up stale daemon files", "stale_pid", pid)

	_ = os.Remove(pidPath)
	_ = os.Remove(socketPath)
	_ = os.Remove(StatusPath(socketPath))
	if historyDir != "" {
		_ = os.Remove(filepath.Join(historyDir, "LOCK"))
	}
	return nil
}
