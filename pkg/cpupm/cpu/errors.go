package cpu

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a Manager matches exactly one of these
// with errors.Is.
var (
	// ErrPermissionDenied means a write was attempted without root privileges.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidValue means the requested value was rejected before any write:
	// an unknown core, a governor outside the available set, offlining core 0.
	ErrInvalidValue = errors.New("invalid value")

	// ErrNotSupported means the operation has no meaning for the detected driver.
	ErrNotSupported = errors.New("not supported")

	// ErrIO means a sysfs or procfs file was missing, unreadable or unparsable.
	ErrIO = errors.New("io error")
)

// globalCore marks an OpError that is not tied to a single core.
const globalCore = -1

// permissionHint is appended to every ErrPermissionDenied error so callers can
// show it verbatim.
const permissionHint = `root privileges required. Either run with sudo:
  sudo cpupm <command>
or install the PolicyKit (polkit) policy that grants cpupm write access:
  sudo cp io.github.cpupm.policy /usr/share/polkit-1/actions/
or start the cpupmd daemon as root (cpupm daemon start) and apply profiles
through it with --daemon`

// OpError records the operation and core that failed.
type OpError struct {
	Op   string
	Core int
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	var msg string
	if e.Core == globalCore {
		msg = e.Op
	} else {
		msg = fmt.Sprintf("%s (core %d)", e.Op, e.Core)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opErr(op string, core int, kind, err error) error {
	return &OpError{Op: op, Core: core, Kind: kind, Err: err}
}

func invalid(op string, core int, format string, args ...interface{}) error {
	return opErr(op, core, ErrInvalidValue, fmt.Errorf(format, args...))
}

func unsupported(op string, d Driver) error {
	return opErr(op, globalCore, ErrNotSupported, fmt.Errorf("driver %s", d))
}
