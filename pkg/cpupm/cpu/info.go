package cpu

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// unknownField is reported when /proc/cpuinfo lacks a field.
const unknownField = "Unknown"

// Info is a point-in-time description of the processor. Frequencies are the
// hardware limits of core 0.
type Info struct {
	Model                string   `json:"model" yaml:"model"`
	Vendor               string   `json:"vendor" yaml:"vendor"`
	CoreCount            int      `json:"core_count" yaml:"core_count"`
	Driver               Driver   `json:"driver" yaml:"driver"`
	MinFreqMHz           uint     `json:"min_freq_mhz" yaml:"min_freq_mhz"`
	MaxFreqMHz           uint     `json:"max_freq_mhz" yaml:"max_freq_mhz"`
	AvailableGovernors   []string `json:"available_governors" yaml:"available_governors"`
	AvailableFrequencies []uint   `json:"available_frequencies" yaml:"available_frequencies"`
}

// CoreStatus is a point-in-time view of one core.
type CoreStatus struct {
	ID             int     `json:"id" yaml:"id"`
	CurrentFreqMHz uint    `json:"current_freq_mhz" yaml:"current_freq_mhz"`
	MinFreqMHz     uint    `json:"min_freq_mhz" yaml:"min_freq_mhz"`
	MaxFreqMHz     uint    `json:"max_freq_mhz" yaml:"max_freq_mhz"`
	Governor       string  `json:"governor" yaml:"governor"`
	Online         bool    `json:"online" yaml:"online"`
	UsagePercent   float64 `json:"usage_percent" yaml:"usage_percent"`
}

// Info reads a fresh processor description. Nothing is cached.
func (m *Manager) Info() (*Info, error) {
	model, vendor, err := m.cpuinfo()
	if err != nil {
		return nil, err
	}
	minFreq, err := m.HardwareMinFreq(0)
	if err != nil {
		return nil, err
	}
	maxFreq, err := m.HardwareMaxFreq(0)
	if err != nil {
		return nil, err
	}
	governors, err := m.AvailableGovernors(0)
	if err != nil {
		return nil, err
	}
	freqs, err := m.AvailableFrequencies(0)
	if err != nil {
		logger.Debug("available frequencies unreadable", "error", err)
		freqs = []uint{}
	}

	return &Info{
		Model:                model,
		Vendor:               vendor,
		CoreCount:            m.cores,
		Driver:               m.driver,
		MinFreqMHz:           minFreq,
		MaxFreqMHz:           maxFreq,
		AvailableGovernors:   governors,
		AvailableFrequencies: freqs,
	}, nil
}

// CoreStatus reads the current state of core. Utilisation is not measured;
// UsagePercent is always 0.
func (m *Manager) CoreStatus(core int) (*CoreStatus, error) {
	if err := m.checkCore("read core status", core); err != nil {
		return nil, err
	}
	cur, err := m.Frequency(core)
	if err != nil {
		return nil, err
	}
	minFreq, err := m.ScalingMinFreq(core)
	if err != nil {
		return nil, err
	}
	maxFreq, err := m.ScalingMaxFreq(core)
	if err != nil {
		return nil, err
	}
	gov, err := m.Governor(core)
	if err != nil {
		return nil, err
	}
	online, err := m.CoreOnline(core)
	if err != nil {
		return nil, err
	}

	return &CoreStatus{
		ID:             core,
		CurrentFreqMHz: cur,
		MinFreqMHz:     minFreq,
		MaxFreqMHz:     maxFreq,
		Governor:       gov,
		Online:         online,
	}, nil
}

// AllCoreStatus reads every core in order and fails on the first error.
func (m *Manager) AllCoreStatus() ([]CoreStatus, error) {
	all := make([]CoreStatus, 0, m.cores)
	for core := 0; core < m.cores; core++ {
		st, err := m.CoreStatus(core)
		if err != nil {
			return nil, err
		}
		all = append(all, *st)
	}
	return all, nil
}

// cpuinfo returns the first "model name" and "vendor_id" values.
func (m *Manager) cpuinfo() (model, vendor string, err error) {
	const op = "read cpuinfo"

	f, err := os.Open(filepath.Join(m.proc, "cpuinfo"))
	if err != nil {
		return "", "", opErr(op, globalCore, ErrIO, err)
	}
	defer func() { _ = f.Close() }()

	model, vendor = unknownField, unknownField
	var haveModel, haveVendor bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && !(haveModel && haveVendor) {
		line := scanner.Text()
		switch {
		case !haveModel && strings.HasPrefix(line, "model name"):
			model, haveModel = cpuinfoValue(line), true
		case !haveVendor && strings.HasPrefix(line, "vendor_id"):
			vendor, haveVendor = cpuinfoValue(line), true
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", opErr(op, globalCore, ErrIO, err)
	}
	return model, vendor, nil
}

func cpuinfoValue(line string) string {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return unknownField
	}
	return strings.TrimSpace(value)
}
