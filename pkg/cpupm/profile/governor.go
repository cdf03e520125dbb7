package profile

import (
	"fmt"
	"slices"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
)

// ErrNoGovernor means neither the requested governor nor any fallback for the
// profile's intent is available. It matches cpu.ErrInvalidValue.
var ErrNoGovernor = fmt.Errorf("no suitable governor: %w", cpu.ErrInvalidValue)

// fallbackGovernors ranks substitutes per intent, best first.
var fallbackGovernors = map[Intent][]string{
	IntentPerformance: {cpu.GovernorPerformance, cpu.GovernorPowersave},
	IntentBalanced:    {cpu.GovernorSchedutil, cpu.GovernorOndemand, cpu.GovernorPowersave, cpu.GovernorPerformance},
	IntentPowerSave:   {cpu.GovernorPowersave, cpu.GovernorConservative, cpu.GovernorOndemand},
}

// FallbackGovernors returns the ranking used for intent.
func FallbackGovernors(intent Intent) []string {
	return slices.Clone(fallbackGovernors[intent])
}

// SelectGovernor returns the profile's governor when available, otherwise
// the first available entry of the intent's ranking.
func SelectGovernor(p Profile, available []string) (string, error) {
	if slices.Contains(available, p.Governor) {
		return p.Governor, nil
	}
	for _, candidate := range fallbackGovernors[p.Intent] {
		if slices.Contains(available, candidate) {
			logger.Warn("governor not available, falling back",
				"profile", p.Name, "requested", p.Governor, "using", candidate)
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for profile %q (requested %s, intent %s, available %v)",
		ErrNoGovernor, p.Name, p.Governor, p.Intent, available)
}
