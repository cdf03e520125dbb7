// Package config provides configuration management for cpupm and cpupmd.
package config

// Default configuration values.
const (
	// DefaultSysfsRoot is the sysfs mount point.
	DefaultSysfsRoot = "/sys"

	// DefaultProcfsRoot is the procfs mount point.
	DefaultProcfsRoot = "/proc"

	// DefaultProfile is applied by `cpupm profile apply` without arguments.
	DefaultProfile = "Balanced"

	// DefaultACProfile is chosen by `cpupm auto` on mains power.
	DefaultACProfile = "Performance"

	// DefaultBatteryProfile is chosen by `cpupm auto` on battery.
	DefaultBatteryProfile = "Balanced"

	// DefaultRetentionDays is how long history entries are kept.
	DefaultRetentionDays = 30

	// DefaultRuntimeDir holds the daemon socket and PID file. It must be
	// shared by root and unprivileged clients, so it is not per-user.
	DefaultRuntimeDir = "/run/cpupm"

	// DefaultSocketMode lets members of the socket's group talk to cpupmd.
	DefaultSocketMode = "0660"
)
