package cpu

import (
	"errors"
	"os"
)

// CoreOnline reports whether core is online. Core 0 cannot be hot-unplugged
// and cores without an online attribute are treated as online.
func (m *Manager) CoreOnline(core int) (bool, error) {
	const op = "read online state"
	if err := m.checkCore(op, core); err != nil {
		return false, err
	}
	if core == 0 {
		return true, nil
	}
	v, err := readUint(m.corePath(core, onlineFile))
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fileErr(op, core, err)
	}
	return v == 1, nil
}

// SetCoreOnline brings core online or takes it offline. Offlining core 0 is
// rejected before the privilege check and never touches sysfs; onlining it is
// a no-op.
func (m *Manager) SetCoreOnline(core int, online bool) error {
	const op = "set online state"
	if err := m.checkCore(op, core); err != nil {
		return err
	}
	if core == 0 {
		if !online {
			return invalid(op, core, "core 0 cannot be taken offline")
		}
		return nil
	}
	return m.mutate(op, core, func() error {
		if err := writeString(m.corePath(core, onlineFile), boolFlag(online)); err != nil {
			return fileErr(op, core, err)
		}
		logger.Info("set online state", "core", core, "online", online)
		return nil
	})
}
