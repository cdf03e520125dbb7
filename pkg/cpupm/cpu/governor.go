package cpu

import (
	"slices"
	"strings"
)

// Governor names the kernel ships.
const (
	GovernorPerformance  = "performance"
	GovernorPowersave    = "powersave"
	GovernorSchedutil    = "schedutil"
	GovernorOndemand     = "ondemand"
	GovernorConservative = "conservative"
	GovernorUserspace    = "userspace"
)

// Governor returns the active governor of core.
func (m *Manager) Governor(core int) (string, error) {
	const op = "read governor"
	if err := m.checkCore(op, core); err != nil {
		return "", err
	}
	gov, err := readString(m.freqPath(core, governorFile))
	if err != nil {
		return "", fileErr(op, core, err)
	}
	return gov, nil
}

// Governors returns the active governor of every core, in core order.
func (m *Manager) Governors() ([]string, error) {
	govs := make([]string, 0, m.cores)
	for core := 0; core < m.cores; core++ {
		g, err := m.Governor(core)
		if err != nil {
			return nil, err
		}
		govs = append(govs, g)
	}
	return govs, nil
}

// AvailableGovernors returns the governors core may switch to.
func (m *Manager) AvailableGovernors(core int) ([]string, error) {
	const op = "read available governors"
	if err := m.checkCore(op, core); err != nil {
		return nil, err
	}
	s, err := readString(m.freqPath(core, availGovernorsFile))
	if err != nil {
		return nil, fileErr(op, core, err)
	}
	return strings.Fields(s), nil
}

// SetGovernor switches core to governor. The governor must appear in the
// core's available list.
func (m *Manager) SetGovernor(core int, governor string) error {
	const op = "set governor"
	if err := m.checkCore(op, core); err != nil {
		return err
	}
	return m.mutate(op, core, func() error {
		available, err := m.AvailableGovernors(core)
		if err != nil {
			return err
		}
		if !slices.Contains(available, governor) {
			return invalid(op, core, "governor %q is not available (available: %s)", governor, strings.Join(available, ", "))
		}
		if err := writeString(m.freqPath(core, governorFile), governor); err != nil {
			return fileErr(op, core, err)
		}
		logger.Info("set governor", "core", core, "governor", governor)
		return nil
	})
}

// SetGovernorAll switches every core in ascending order, failing fast.
func (m *Manager) SetGovernorAll(governor string) error {
	for core := 0; core < m.cores; core++ {
		if err := m.SetGovernor(core, governor); err != nil {
			return err
		}
	}
	return nil
}
