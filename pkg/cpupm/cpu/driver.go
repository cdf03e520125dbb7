package cpu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Driver identifies the active cpufreq scaling driver.
type Driver int

// Scaling drivers cpupm knows how to handle.
const (
	Unknown Driver = iota
	IntelPstate
	AmdPstate
	AcpiCpufreq
)

var driverNames = map[Driver]string{
	Unknown:     "unknown",
	IntelPstate: "intel_pstate",
	AmdPstate:   "amd_pstate",
	AcpiCpufreq: "acpi-cpufreq",
}

// String returns the kernel-style driver name.
func (d Driver) String() string {
	if name, ok := driverNames[d]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (d Driver) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Driver) UnmarshalText(text []byte) error {
	for drv, name := range driverNames {
		if name == string(text) {
			*d = drv
			return nil
		}
	}
	return fmt.Errorf("unknown scaling driver %q", text)
}

// DetectDriver classifies the scaling driver below base (normally
// /sys/devices/system/cpu). The checks run in priority order and never fail:
// unreadable paths fall through to the next check and finally to Unknown.
func DetectDriver(base string) Driver {
	if exists(filepath.Join(base, intelPstateDir)) {
		return IntelPstate
	}
	if exists(filepath.Join(base, amdPstateDir)) {
		return AmdPstate
	}
	data, err := os.ReadFile(filepath.Join(base, "cpu0", cpufreqDir, scalingDriverFile))
	if err == nil && strings.TrimSpace(string(data)) == "acpi-cpufreq" {
		return AcpiCpufreq
	}
	return Unknown
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
