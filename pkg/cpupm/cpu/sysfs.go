package cpu

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Layout of /sys/devices/system/cpu relative to the base directory.
const (
	cpufreqDir        = "cpufreq"
	intelPstateDir    = "intel_pstate"
	amdPstateDir      = "amd_pstate"
	scalingDriverFile = "scaling_driver"

	scalingCurFreqFile  = "scaling_cur_freq"
	scalingSetSpeedFile = "scaling_setspeed"
	scalingMinFreqFile  = "scaling_min_freq"
	scalingMaxFreqFile  = "scaling_max_freq"
	cpuinfoMinFreqFile  = "cpuinfo_min_freq"
	cpuinfoMaxFreqFile  = "cpuinfo_max_freq"
	governorFile        = "scaling_governor"
	availGovernorsFile  = "scaling_available_governors"
	availFreqsFile      = "scaling_available_frequencies"
	eppFile             = "energy_performance_preference"
	epbFile             = "power/energy_perf_bias"
	onlineFile          = "online"
	noTurboFile         = "no_turbo"
	boostFile           = "boost"

	khzPerMHz = 1000
)

// BasePath returns the cpu control directory below a sysfs root.
func BasePath(sysRoot string) string {
	return filepath.Join(sysRoot, "devices", "system", "cpu")
}

func (m *Manager) corePath(core int, name string) string {
	return filepath.Join(m.base, fmt.Sprintf("cpu%d", core), name)
}

func (m *Manager) freqPath(core int, name string) string {
	return filepath.Join(m.base, fmt.Sprintf("cpu%d", core), cpufreqDir, name)
}

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readUint(path string) (uint64, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return n, nil
}

// readMHz reads a kHz value and converts it to MHz. Values that are not a
// multiple of 1000 are truncated toward zero.
func readMHz(path string) (uint, error) {
	khz, err := readUint(path)
	if err != nil {
		return 0, err
	}
	return khzToMHz(khz), nil
}

func khzToMHz(khz uint64) uint {
	return uint(khz / khzPerMHz)
}

func mhzToKHz(mhz uint) string {
	return strconv.FormatUint(uint64(mhz)*khzPerMHz, 10)
}

func writeString(path, value string) error {
	// O_TRUNC without O_CREATE: sysfs attributes must already exist.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
