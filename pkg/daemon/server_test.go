package daemon_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu/cputest"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
	"github.com/jamesainslie/cpupm/pkg/daemon"
)

func newService(t *testing.T) *daemon.Service {
	t.Helper()
	fake := cputest.New(t, cputest.Options{Cores: 1})
	mgr, err := cpu.New(cpu.WithSysRoot(fake.SysRoot), cpu.WithProcRoot(fake.ProcRoot))
	if err != nil {
		t.Fatal(err)
	}
	return daemon.NewService(mgr, profile.NewRegistry(), nil)
}

func TestNewServer_SocketMode(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "run", "cpupmd.sock")

	srv, err := daemon.NewServer(daemon.Config{SocketPath: socketPath, SocketMode: 0o660}, newService(t))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created: %v", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		t.Errorf("Expected a socket, got mode %v", info.Mode())
	}
	if perm := info.Mode().Perm(); perm != 0o660 {
		t.Errorf("Expected mode 0660, got %o", perm)
	}
	if srv.Addr() != socketPath {
		t.Errorf("Addr() = %q", srv.Addr())
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket should be removed on Close")
	}
}

func TestNewServer_ReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "cpupmd.sock")
	if err := os.WriteFile(socketPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	srv, err := daemon.NewServer(daemon.Config{SocketPath: socketPath}, newService(t))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer srv.Close()
}
