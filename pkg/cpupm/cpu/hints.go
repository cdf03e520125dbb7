package cpu

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// MaxEPB is the largest energy_perf_bias value (15 = most power saving).
const MaxEPB = 15

// TurboEnabled reports whether turbo/boost is enabled. intel_pstate exposes
// an inverted no_turbo flag; acpi-cpufreq a boost flag, read as disabled
// when absent. Other drivers return ErrNotSupported.
func (m *Manager) TurboEnabled() (bool, error) {
	const op = "read turbo"
	switch m.driver {
	case IntelPstate:
		v, err := readUint(m.intelPath(noTurboFile))
		if err != nil {
			return false, fileErr(op, globalCore, err)
		}
		return v == 0, nil
	case AcpiCpufreq:
		v, err := readUint(m.boostPath())
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, fileErr(op, globalCore, err)
		}
		return v == 1, nil
	default:
		return false, unsupported(op, m.driver)
	}
}

// SetTurbo enables or disables turbo/boost system-wide.
func (m *Manager) SetTurbo(enable bool) error {
	const op = "set turbo"

	var path, value string
	switch m.driver {
	case IntelPstate:
		path, value = m.intelPath(noTurboFile), boolFlag(!enable)
	case AcpiCpufreq:
		path, value = m.boostPath(), boolFlag(enable)
	default:
		return unsupported(op, m.driver)
	}

	return m.mutate(op, globalCore, func() error {
		if m.driver == AcpiCpufreq && !exists(path) {
			return opErr(op, globalCore, ErrNotSupported, errors.New("boost control not available"))
		}
		if err := writeString(path, value); err != nil {
			return fileErr(op, globalCore, err)
		}
		logger.Info("set turbo", "enabled", enable)
		return nil
	})
}

// EPP returns the energy performance preference of core. Cores without the
// attribute return ErrNotSupported.
func (m *Manager) EPP(core int) (string, error) {
	const op = "read epp"
	if err := m.checkCore(op, core); err != nil {
		return "", err
	}
	epp, err := readString(m.freqPath(core, eppFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", opErr(op, core, ErrNotSupported, err)
	}
	if err != nil {
		return "", fileErr(op, core, err)
	}
	return epp, nil
}

// SetEPP writes the energy performance preference on every core that exposes
// it. Only intel_pstate accepts EPP through this layer.
func (m *Manager) SetEPP(epp string) error {
	const op = "set epp"
	if m.driver != IntelPstate {
		return unsupported(op, m.driver)
	}
	return m.mutate(op, globalCore, func() error {
		for core := 0; core < m.cores; core++ {
			path := m.freqPath(core, eppFile)
			if !exists(path) {
				continue
			}
			if err := writeString(path, epp); err != nil {
				return fileErr(op, core, err)
			}
		}
		logger.Info("set epp", "epp", epp)
		return nil
	})
}

// EPB returns the energy_perf_bias of core.
func (m *Manager) EPB(core int) (uint8, error) {
	const op = "read epb"
	if err := m.checkCore(op, core); err != nil {
		return 0, err
	}
	v, err := readUint(m.corePath(core, epbFile))
	if errors.Is(err, os.ErrNotExist) {
		return 0, opErr(op, core, ErrNotSupported, err)
	}
	if err != nil {
		return 0, fileErr(op, core, err)
	}
	if v > MaxEPB {
		return 0, opErr(op, core, ErrIO, fmt.Errorf("energy_perf_bias %d out of range", v))
	}
	return uint8(v), nil
}

// SetEPB writes energy_perf_bias (0-15) on every core that exposes it.
// Like EPP it is limited to intel_pstate.
func (m *Manager) SetEPB(bias uint8) error {
	const op = "set epb"
	if m.driver != IntelPstate {
		return unsupported(op, m.driver)
	}
	if bias > MaxEPB {
		return invalid(op, globalCore, "energy_perf_bias %d out of range 0-%d", bias, MaxEPB)
	}
	return m.mutate(op, globalCore, func() error {
		value := strconv.Itoa(int(bias))
		for core := 0; core < m.cores; core++ {
			path := m.corePath(core, epbFile)
			if !exists(path) {
				continue
			}
			if err := writeString(path, value); err != nil {
				return fileErr(op, core, err)
			}
		}
		logger.Info("set epb", "epb", bias)
		return nil
	})
}
