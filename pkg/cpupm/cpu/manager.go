// Package cpu is the hardware-abstraction layer over the Linux cpufreq sysfs
// tree. A Manager maps typed operations onto /sys/devices/system/cpu files,
// converts kHz to MHz, and enforces driver-specific rules.
//
// All operations are synchronous one-shot reads or writes. A Manager keeps no
// mutable state, so it is safe to share, but sequences spanning several files
// are not atomic with respect to other writers of the same sysfs tree.
package cpu

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
)

var logger = logging.Get("cpu")

// Default filesystem roots.
const (
	DefaultSysRoot  = "/sys"
	DefaultProcRoot = "/proc"
)

// Manager is a handle over the cpufreq tree. Core count and driver are
// captured once by New.
type Manager struct {
	base       string
	proc       string
	cores      int
	driver     Driver
	privileged func() bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithSysRoot points the Manager at a sysfs mount other than /sys.
func WithSysRoot(root string) Option {
	return func(m *Manager) {
		m.base = BasePath(root)
	}
}

// WithProcRoot points the Manager at a procfs mount other than /proc.
func WithProcRoot(root string) Option {
	return func(m *Manager) {
		m.proc = root
	}
}

// WithPrivilegeCheck replaces the effective-UID check used by the write gate.
func WithPrivilegeCheck(fn func() bool) Option {
	return func(m *Manager) {
		m.privileged = fn
	}
}

// IsRoot reports whether the process runs with effective UID 0.
func IsRoot() bool {
	return unix.Geteuid() == 0
}

// New detects topology and the scaling driver. It fails only when the cpu
// directory cannot be listed.
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		base:       BasePath(DefaultSysRoot),
		proc:       DefaultProcRoot,
		privileged: IsRoot,
	}
	for _, opt := range opts {
		opt(m)
	}

	cores, err := CountCores(m.base)
	if err != nil {
		return nil, err
	}
	m.cores = cores
	m.driver = DetectDriver(m.base)

	logger.Info("detected cpus", "cores", m.cores, "driver", m.driver)
	return m, nil
}

// CoreCount returns the number of cores found at construction.
func (m *Manager) CoreCount() int {
	return m.cores
}

// Driver returns the scaling driver detected at construction.
func (m *Manager) Driver() Driver {
	return m.driver
}

// BaseDir returns the cpu control directory the Manager operates on.
func (m *Manager) BaseDir() string {
	return m.base
}

// Writable reports whether the write gate would currently allow a write.
func (m *Manager) Writable() bool {
	return m.privileged()
}

// mutate is the single entry point for every sysfs write. The privilege check
// runs before fn, so an unprivileged caller never changes anything.
func (m *Manager) mutate(op string, core int, fn func() error) error {
	if !m.privileged() {
		return opErr(op, core, ErrPermissionDenied, errors.New(permissionHint))
	}
	return fn()
}

func (m *Manager) checkCore(op string, core int) error {
	if core < 0 || core >= m.cores {
		return invalid(op, core, "core %d does not exist (%d cores)", core, m.cores)
	}
	return nil
}

// fileErr classifies a filesystem error from a read or write.
func fileErr(op string, core int, err error) error {
	switch {
	case errors.Is(err, os.ErrPermission):
		return opErr(op, core, ErrPermissionDenied, err)
	case errors.Is(err, unix.EINVAL):
		return opErr(op, core, ErrInvalidValue, err)
	default:
		return opErr(op, core, ErrIO, err)
	}
}

func (m *Manager) intelPath(name string) string {
	return filepath.Join(m.base, intelPstateDir, name)
}

func (m *Manager) boostPath() string {
	return filepath.Join(m.base, cpufreqDir, boostFile)
}
