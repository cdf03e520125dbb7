package profile

import (
	"fmt"
)

// Controller is the subset of cpu.Manager that Apply drives.
type Controller interface {
	CoreCount() int
	AvailableGovernors(core int) ([]string, error)
	SetGovernorAll(governor string) error
	SetTurbo(enable bool) error
	HardwareMinFreq(core int) (uint, error)
	HardwareMaxFreq(core int) (uint, error)
	SetScalingMinFreq(core int, mhz uint) error
	SetScalingMaxFreq(core int, mhz uint) error
	SetEPP(epp string) error
	SetEPB(bias uint8) error
}

// Apply pushes p onto the hardware:
//
//  1. pick a governor from core 0's available list and set it on every core
//  2. set turbo (auto enables it)
//  3. reset every core's scaling bounds to its hardware limits
//  4. apply the profile's min bound to every core, then its max bound
//  5. set EPP and EPB, logging failures without returning them
//
// A failure in steps 1-4 aborts and is returned as is. Earlier steps are not
// undone; see history.Capture for callers that need to roll back.
func Apply(ctrl Controller, p Profile) error {
	logger.Info("applying profile", "profile", p.Name)

	available, err := ctrl.AvailableGovernors(0)
	if err != nil {
		return applyErr(p, "read available governors", err)
	}
	governor, err := SelectGovernor(p, available)
	if err != nil {
		return err
	}
	logger.Debug("selected governor", "governor", governor, "requested", p.Governor, "available", available)

	if err := ctrl.SetGovernorAll(governor); err != nil {
		return applyErr(p, "set governor", err)
	}

	if err := ctrl.SetTurbo(p.Turbo != TurboNever); err != nil {
		return applyErr(p, "set turbo", err)
	}

	cores := ctrl.CoreCount()
	for core := 0; core < cores; core++ {
		if err := resetLimits(ctrl, core); err != nil {
			return applyErr(p, "reset frequency limits", err)
		}
	}

	if p.MinFreqMHz != nil {
		logger.Debug("applying min frequency", "mhz", *p.MinFreqMHz)
		for core := 0; core < cores; core++ {
			if err := ctrl.SetScalingMinFreq(core, *p.MinFreqMHz); err != nil {
				return applyErr(p, "set min frequency", err)
			}
		}
	}
	if p.MaxFreqMHz != nil {
		logger.Debug("applying max frequency", "mhz", *p.MaxFreqMHz)
		for core := 0; core < cores; core++ {
			if err := ctrl.SetScalingMaxFreq(core, *p.MaxFreqMHz); err != nil {
				return applyErr(p, "set max frequency", err)
			}
		}
	}

	if p.EPP != "" {
		if err := ctrl.SetEPP(p.EPP); err != nil {
			logger.Warn("could not set epp", "epp", p.EPP, "error", err)
		}
	}
	if p.EPB != nil {
		if err := ctrl.SetEPB(*p.EPB); err != nil {
			logger.Warn("could not set epb", "epb", *p.EPB, "error", err)
		}
	}

	logger.Info("profile applied", "profile", p.Name, "governor", governor)
	return nil
}

// resetLimits widens core to its full hardware range so bounds from a previous
// profile cannot stick. Each core uses its own cpuinfo limits rather than
// core 0's, since hybrid parts report different ranges per core.
func resetLimits(ctrl Controller, core int) error {
	hwMin, err := ctrl.HardwareMinFreq(core)
	if err != nil {
		return err
	}
	hwMax, err := ctrl.HardwareMaxFreq(core)
	if err != nil {
		return err
	}
	if err := ctrl.SetScalingMinFreq(core, hwMin); err != nil {
		return err
	}
	return ctrl.SetScalingMaxFreq(core, hwMax)
}

func applyErr(p Profile, step string, err error) error {
	return fmt.Errorf("apply profile %q: %s: %w", p.Name, step, err)
}
