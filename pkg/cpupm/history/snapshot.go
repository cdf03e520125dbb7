package history

import (
	"errors"
	"fmt"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
)

// Controller is the part of cpu.Manager needed to capture and restore state
// around a profile apply.
type Controller interface {
	profile.Controller
	Governor(core int) (string, error)
	SetGovernor(core int, governor string) error
	ScalingMinFreq(core int) (uint, error)
	ScalingMaxFreq(core int) (uint, error)
	TurboEnabled() (bool, error)
	EPP(core int) (string, error)
	EPB(core int) (uint8, error)
}

// CoreState is the restorable state of one core.
type CoreState struct {
	ID         int    `json:"id" yaml:"id"`
	Governor   string `json:"governor" yaml:"governor"`
	MinFreqMHz uint   `json:"min_freq_mhz" yaml:"min_freq_mhz"`
	MaxFreqMHz uint   `json:"max_freq_mhz" yaml:"max_freq_mhz"`
}

// Snapshot is the restorable CPU state at one point in time. Turbo, EPP and
// EPB are nil or empty when the driver does not expose them.
type Snapshot struct {
	Cores []CoreState `json:"cores" yaml:"cores"`
	Turbo *bool       `json:"turbo,omitempty" yaml:"turbo,omitempty"`
	EPP   string      `json:"epp,omitempty" yaml:"epp,omitempty"`
	EPB   *uint8      `json:"epb,omitempty" yaml:"epb,omitempty"`
}

// Capture reads the current state of every core.
func Capture(ctrl Controller) (*Snapshot, error) {
	n := ctrl.CoreCount()
	snap := &Snapshot{Cores: make([]CoreState, 0, n)}

	for core := 0; core < n; core++ {
		gov, err := ctrl.Governor(core)
		if err != nil {
			return nil, fmt.Errorf("capturing core %d: %w", core, err)
		}
		minFreq, err := ctrl.ScalingMinFreq(core)
		if err != nil {
			return nil, fmt.Errorf("capturing core %d: %w", core, err)
		}
		maxFreq, err := ctrl.ScalingMaxFreq(core)
		if err != nil {
			return nil, fmt.Errorf("capturing core %d: %w", core, err)
		}
		snap.Cores = append(snap.Cores, CoreState{ID: core, Governor: gov, MinFreqMHz: minFreq, MaxFreqMHz: maxFreq})
	}

	if turbo, err := ctrl.TurboEnabled(); err == nil {
		snap.Turbo = &turbo
	} else if !errors.Is(err, cpu.ErrNotSupported) {
		return nil, fmt.Errorf("capturing turbo: %w", err)
	}

	// Energy hints are optional even on drivers that support them.
	if epp, err := ctrl.EPP(0); err == nil {
		snap.EPP = epp
	}
	if epb, err := ctrl.EPB(0); err == nil {
		snap.EPB = &epb
	}

	return snap, nil
}

// Restore writes snap back. Bounds are widened to the hardware range before
// the saved bounds are applied, as profile.Apply does. Energy hint failures
// are logged and ignored.
func Restore(ctrl Controller, snap *Snapshot) error {
	if snap == nil {
		return errors.New("no snapshot to restore")
	}
	if len(snap.Cores) != ctrl.CoreCount() {
		return fmt.Errorf("%w: snapshot has %d cores, system has %d",
			cpu.ErrInvalidValue, len(snap.Cores), ctrl.CoreCount())
	}

	for _, c := range snap.Cores {
		if err := ctrl.SetGovernor(c.ID, c.Governor); err != nil {
			return fmt.Errorf("restoring core %d: %w", c.ID, err)
		}
		hwMin, err := ctrl.HardwareMinFreq(c.ID)
		if err != nil {
			return fmt.Errorf("restoring core %d: %w", c.ID, err)
		}
		hwMax, err := ctrl.HardwareMaxFreq(c.ID)
		if err != nil {
			return fmt.Errorf("restoring core %d: %w", c.ID, err)
		}
		for _, step := range []struct {
			set func(int, uint) error
			mhz uint
		}{
			{ctrl.SetScalingMinFreq, hwMin},
			{ctrl.SetScalingMaxFreq, hwMax},
			{ctrl.SetScalingMinFreq, c.MinFreqMHz},
			{ctrl.SetScalingMaxFreq, c.MaxFreqMHz},
		} {
			if err := step.set(c.ID, step.mhz); err != nil {
				return fmt.Errorf("restoring core %d: %w", c.ID, err)
			}
		}
	}

	if snap.Turbo != nil {
		if err := ctrl.SetTurbo(*snap.Turbo); err != nil {
			return fmt.Errorf("restoring turbo: %w", err)
		}
	}
	if snap.EPP != "" {
		if err := ctrl.SetEPP(snap.EPP); err != nil {
			logger.Warn("could not restore epp", "epp", snap.EPP, "error", err)
		}
	}
	if snap.EPB != nil {
		if err := ctrl.SetEPB(*snap.EPB); err != nil {
			logger.Warn("could not restore epb", "epb", *snap.EPB, "error", err)
		}
	}

	logger.Info("snapshot restored", "cores", len(snap.Cores))
	return nil
}
