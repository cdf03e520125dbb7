package cpu

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

func (m *Manager) readFreq(op string, core int, file string) (uint, error) {
	if err := m.checkCore(op, core); err != nil {
		return 0, err
	}
	mhz, err := readMHz(m.freqPath(core, file))
	if err != nil {
		return 0, fileErr(op, core, err)
	}
	return mhz, nil
}

func (m *Manager) writeFreq(op string, core int, file string, mhz uint) error {
	if err := m.checkCore(op, core); err != nil {
		return err
	}
	return m.mutate(op, core, func() error {
		if err := writeString(m.freqPath(core, file), mhzToKHz(mhz)); err != nil {
			return fileErr(op, core, err)
		}
		logger.Info(op, "core", core, "mhz", mhz)
		return nil
	})
}

// Frequency returns the current frequency of core in MHz.
func (m *Manager) Frequency(core int) (uint, error) {
	return m.readFreq("read frequency", core, scalingCurFreqFile)
}

// Frequencies returns the current frequency of every core, in core order.
func (m *Manager) Frequencies() ([]uint, error) {
	freqs := make([]uint, 0, m.cores)
	for core := 0; core < m.cores; core++ {
		f, err := m.Frequency(core)
		if err != nil {
			return nil, err
		}
		freqs = append(freqs, f)
	}
	return freqs, nil
}

// SetFrequency writes scaling_setspeed. The kernel only honours it under the
// userspace governor.
func (m *Manager) SetFrequency(core int, mhz uint) error {
	return m.writeFreq("set frequency", core, scalingSetSpeedFile, mhz)
}

// SetFrequencyAll sets every core in ascending order and stops at the first
// failure. Cores already written stay written.
func (m *Manager) SetFrequencyAll(mhz uint) error {
	for core := 0; core < m.cores; core++ {
		if err := m.SetFrequency(core, mhz); err != nil {
			return err
		}
	}
	return nil
}

// ScalingMinFreq returns the lower scaling bound of core in MHz.
func (m *Manager) ScalingMinFreq(core int) (uint, error) {
	return m.readFreq("read min frequency", core, scalingMinFreqFile)
}

// ScalingMaxFreq returns the upper scaling bound of core in MHz.
func (m *Manager) ScalingMaxFreq(core int) (uint, error) {
	return m.readFreq("read max frequency", core, scalingMaxFreqFile)
}

// SetScalingMinFreq sets the lower scaling bound of core.
func (m *Manager) SetScalingMinFreq(core int, mhz uint) error {
	return m.writeFreq("set min frequency", core, scalingMinFreqFile, mhz)
}

// SetScalingMaxFreq sets the upper scaling bound of core.
func (m *Manager) SetScalingMaxFreq(core int, mhz uint) error {
	return m.writeFreq("set max frequency", core, scalingMaxFreqFile, mhz)
}

// SetScalingLimitsAll writes min then max on each core in ascending order,
// failing fast without rollback.
func (m *Manager) SetScalingLimitsAll(minMHz, maxMHz uint) error {
	if minMHz > maxMHz {
		return invalid("set frequency limits", globalCore, "min %d MHz above max %d MHz", minMHz, maxMHz)
	}
	for core := 0; core < m.cores; core++ {
		if err := m.SetScalingMinFreq(core, minMHz); err != nil {
			return err
		}
		if err := m.SetScalingMaxFreq(core, maxMHz); err != nil {
			return err
		}
	}
	return nil
}

// HardwareMinFreq returns cpuinfo_min_freq of core in MHz.
func (m *Manager) HardwareMinFreq(core int) (uint, error) {
	return m.readFreq("read hardware min frequency", core, cpuinfoMinFreqFile)
}

// HardwareMaxFreq returns cpuinfo_max_freq of core in MHz.
func (m *Manager) HardwareMaxFreq(core int) (uint, error) {
	return m.readFreq("read hardware max frequency", core, cpuinfoMaxFreqFile)
}

// AvailableFrequencies returns the discrete frequencies of core in MHz.
// Drivers without a discrete table (intel_pstate, amd_pstate) yield an empty
// slice rather than an error. Unparsable entries are skipped.
func (m *Manager) AvailableFrequencies(core int) ([]uint, error) {
	const op = "read available frequencies"
	if err := m.checkCore(op, core); err != nil {
		return nil, err
	}
	s, err := readString(m.freqPath(core, availFreqsFile))
	if errors.Is(err, os.ErrNotExist) {
		return []uint{}, nil
	}
	if err != nil {
		return nil, fileErr(op, core, err)
	}

	fields := strings.Fields(s)
	freqs := make([]uint, 0, len(fields))
	for _, field := range fields {
		khz, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		freqs = append(freqs, khzToMHz(khz))
	}
	return freqs, nil
}
