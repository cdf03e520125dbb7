// Package cputest builds fake sysfs and procfs trees for tests that drive a
// cpu.Manager without real hardware.
package cputest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Driver names as the kernel reports them.
const (
	IntelPstate = "intel_pstate"
	AmdPstate   = "amd_pstate"
	AcpiCpufreq = "acpi-cpufreq"
)

// Options describes the machine to fake. Zero values get sensible defaults.
type Options struct {
	Cores     int
	Driver    string
	Governors []string
	Governor  string
	// Hardware limits in kHz.
	HWMinKHz uint64
	HWMaxKHz uint64
	CurKHz   uint64
	// FrequenciesKHz, when set, creates scaling_available_frequencies.
	FrequenciesKHz []uint64
	// NoBoostFile omits cpufreq/boost on acpi-cpufreq machines.
	NoBoostFile bool
	Model       string
	Vendor      string
}

// Fake is a temporary sysfs/procfs tree.
type Fake struct {
	SysRoot  string
	ProcRoot string
	Base     string

	t testing.TB
}

// New creates the tree under t.TempDir().
func New(t testing.TB, opts Options) *Fake {
	t.Helper()
	opts = withDefaults(opts)

	root := t.TempDir()
	f := &Fake{
		SysRoot:  filepath.Join(root, "sys"),
		ProcRoot: filepath.Join(root, "proc"),
		t:        t,
	}
	f.Base = filepath.Join(f.SysRoot, "devices", "system", "cpu")

	// Non-core entries that must not be counted as cores.
	f.Mkdir("cpuidle")
	f.Mkdir("cpufreq")
	f.Write("0-"+strconv.Itoa(opts.Cores-1), "possible")

	for core := 0; core < opts.Cores; core++ {
		cpu := fmt.Sprintf("cpu%d", core)
		freq := func(name string) []string { return []string{cpu, "cpufreq", name} }

		f.Write(opts.Driver, freq("scaling_driver")...)
		f.Write(khz(opts.CurKHz), freq("scaling_cur_freq")...)
		f.Write(khz(opts.HWMinKHz), freq("scaling_min_freq")...)
		f.Write(khz(opts.HWMaxKHz), freq("scaling_max_freq")...)
		f.Write(khz(opts.HWMinKHz), freq("cpuinfo_min_freq")...)
		f.Write(khz(opts.HWMaxKHz), freq("cpuinfo_max_freq")...)
		f.Write("<unsupported>", freq("scaling_setspeed")...)
		f.Write(opts.Governor, freq("scaling_governor")...)
		f.Write(strings.Join(opts.Governors, " "), freq("scaling_available_governors")...)
		if opts.FrequenciesKHz != nil {
			parts := make([]string, len(opts.FrequenciesKHz))
			for i, v := range opts.FrequenciesKHz {
				parts[i] = khz(v)
			}
			f.Write(strings.Join(parts, " "), freq("scaling_available_frequencies")...)
		}
		if core > 0 {
			f.Write("1", cpu, "online")
		}
		if opts.Driver == IntelPstate {
			f.Write("balance_performance", freq("energy_performance_preference")...)
			f.Write("6", cpu, "power", "energy_perf_bias")
		}
	}

	switch opts.Driver {
	case IntelPstate:
		f.Write("0", "intel_pstate", "no_turbo")
		f.Write("active", "intel_pstate", "status")
	case AmdPstate:
		f.Write("active", "amd_pstate", "status")
	case AcpiCpufreq:
		if !opts.NoBoostFile {
			f.Write("1", "cpufreq", "boost")
		}
	}

	cpuinfo := fmt.Sprintf("processor\t: 0\nvendor_id\t: %s\nmodel name\t: %s\nflags\t\t: fpu vme\n", opts.Vendor, opts.Model)
	require.NoError(t, os.MkdirAll(f.ProcRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.ProcRoot, "cpuinfo"), []byte(cpuinfo), 0o644))

	return f
}

func withDefaults(opts Options) Options {
	if opts.Cores == 0 {
		opts.Cores = 4
	}
	if opts.Driver == "" {
		opts.Driver = AcpiCpufreq
	}
	if opts.Governors == nil {
		opts.Governors = []string{"performance", "powersave"}
	}
	if opts.Governor == "" {
		opts.Governor = opts.Governors[0]
	}
	if opts.HWMinKHz == 0 {
		opts.HWMinKHz = 400000
	}
	if opts.HWMaxKHz == 0 {
		opts.HWMaxKHz = 4800000
	}
	if opts.CurKHz == 0 {
		opts.CurKHz = 2400000
	}
	if opts.Model == "" {
		opts.Model = "Test CPU @ 2.40GHz"
	}
	if opts.Vendor == "" {
		opts.Vendor = "GenuineIntel"
	}
	return opts
}

func khz(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// Path joins rel onto the cpu base directory.
func (f *Fake) Path(rel ...string) string {
	return filepath.Join(append([]string{f.Base}, rel...)...)
}

// CorePath returns the path of a cpufreq attribute of core.
func (f *Fake) CorePath(core int, name string) string {
	return f.Path(fmt.Sprintf("cpu%d", core), "cpufreq", name)
}

// Mkdir creates a directory below the cpu base.
func (f *Fake) Mkdir(rel ...string) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(f.Path(rel...), 0o755))
}

// Write stores value in the file rel, creating parent directories.
func (f *Fake) Write(value string, rel ...string) {
	f.t.Helper()
	p := f.Path(rel...)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(f.t, os.WriteFile(p, []byte(value+"\n"), 0o644))
}

// Read returns the trimmed content of rel.
func (f *Fake) Read(rel ...string) string {
	f.t.Helper()
	data, err := os.ReadFile(f.Path(rel...))
	require.NoError(f.t, err)
	return strings.TrimSpace(string(data))
}

// ReadCore returns the trimmed content of a cpufreq attribute of core.
func (f *Fake) ReadCore(core int, name string) string {
	f.t.Helper()
	return f.Read(fmt.Sprintf("cpu%d", core), "cpufreq", name)
}

// WriteCore overwrites a cpufreq attribute of core.
func (f *Fake) WriteCore(core int, name, value string) {
	f.t.Helper()
	f.Write(value, fmt.Sprintf("cpu%d", core), "cpufreq", name)
}

// Remove deletes rel.
func (f *Fake) Remove(rel ...string) {
	f.t.Helper()
	require.NoError(f.t, os.RemoveAll(f.Path(rel...)))
}

// WriteCpuinfo replaces the fake /proc/cpuinfo.
func (f *Fake) WriteCpuinfo(content string) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(filepath.Join(f.ProcRoot, "cpuinfo"), []byte(content), 0o644))
}
