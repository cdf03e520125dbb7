// Package profile defines named CPU tuning profiles and applies them to a
// cpu.Manager: governor selection with fallback, turbo, frequency bounds and
// energy hints.
package profile

import (
	"errors"
	"fmt"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
)

var logger = logging.Get("profile")

// Built-in profile names.
const (
	NamePerformance = "Performance"
	NameBalanced    = "Balanced"
	NamePowerSaver  = "Power Saver"
	NameSilent      = "Silent"
)

// ErrInvalidProfile is returned by Validate. It matches cpu.ErrInvalidValue.
var ErrInvalidProfile = fmt.Errorf("invalid profile: %w", cpu.ErrInvalidValue)

// TurboMode controls turbo/boost when a profile is applied.
type TurboMode int

const (
	// TurboAuto currently enables turbo; dynamic control is left to callers.
	TurboAuto TurboMode = iota
	TurboAlways
	TurboNever
)

var turboNames = map[TurboMode]string{
	TurboAuto:   "auto",
	TurboAlways: "always",
	TurboNever:  "never",
}

func (t TurboMode) String() string {
	if s, ok := turboNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TurboMode(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t TurboMode) MarshalText() ([]byte, error) {
	s, ok := turboNames[t]
	if !ok {
		return nil, fmt.Errorf("invalid turbo mode %d", int(t))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TurboMode) UnmarshalText(text []byte) error {
	for mode, name := range turboNames {
		if name == string(text) {
			*t = mode
			return nil
		}
	}
	return fmt.Errorf("invalid turbo mode %q (want always, auto or never)", text)
}

// Intent selects the governor fallback ranking used when a profile's
// requested governor is unavailable. The zero value is IntentPowerSave.
type Intent int

const (
	IntentPowerSave Intent = iota
	IntentBalanced
	IntentPerformance
)

var intentNames = map[Intent]string{
	IntentPowerSave:   "powersave",
	IntentBalanced:    "balanced",
	IntentPerformance: "performance",
}

func (i Intent) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return fmt.Sprintf("Intent(%d)", int(i))
}

// MarshalText implements encoding.TextMarshaler.
func (i Intent) MarshalText() ([]byte, error) {
	s, ok := intentNames[i]
	if !ok {
		return nil, fmt.Errorf("invalid intent %d", int(i))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Intent) UnmarshalText(text []byte) error {
	for intent, name := range intentNames {
		if name == string(text) {
			*i = intent
			return nil
		}
	}
	return fmt.Errorf("invalid intent %q (want performance, balanced or powersave)", text)
}

// Profile is a named bundle of CPU settings. Nil bounds and an empty EPP
// leave the corresponding setting at its hardware default.
type Profile struct {
	Name        string    `toml:"name" json:"name" yaml:"name"`
	Description string    `toml:"description" json:"description" yaml:"description"`
	Intent      Intent    `toml:"intent" json:"intent" yaml:"intent"`
	Governor    string    `toml:"governor" json:"governor" yaml:"governor"`
	Turbo       TurboMode `toml:"turbo" json:"turbo" yaml:"turbo"`
	MinFreqMHz  *uint     `toml:"min_freq_mhz,omitempty" json:"min_freq_mhz,omitempty" yaml:"min_freq_mhz,omitempty"`
	MaxFreqMHz  *uint     `toml:"max_freq_mhz,omitempty" json:"max_freq_mhz,omitempty" yaml:"max_freq_mhz,omitempty"`
	EPP         string    `toml:"epp,omitempty" json:"epp,omitempty" yaml:"epp,omitempty"`
	EPB         *uint8    `toml:"epb,omitempty" json:"epb,omitempty" yaml:"epb,omitempty"`
}

// Validate checks field ranges. It does not consult hardware.
func (p Profile) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if p.Governor == "" {
		errs = append(errs, errors.New("governor is empty"))
	}
	if _, ok := intentNames[p.Intent]; !ok {
		errs = append(errs, fmt.Errorf("unknown intent %d", int(p.Intent)))
	}
	if _, ok := turboNames[p.Turbo]; !ok {
		errs = append(errs, fmt.Errorf("unknown turbo mode %d", int(p.Turbo)))
	}
	if p.MinFreqMHz != nil && p.MaxFreqMHz != nil && *p.MinFreqMHz > *p.MaxFreqMHz {
		errs = append(errs, fmt.Errorf("min_freq_mhz %d above max_freq_mhz %d", *p.MinFreqMHz, *p.MaxFreqMHz))
	}
	if p.EPB != nil && *p.EPB > cpu.MaxEPB {
		errs = append(errs, fmt.Errorf("epb %d out of range 0-%d", *p.EPB, cpu.MaxEPB))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidProfile, p.Name, errors.Join(errs...))
}

// Clone returns a deep copy so callers cannot alias pointer fields.
func (p Profile) Clone() Profile {
	c := p
	if p.MinFreqMHz != nil {
		v := *p.MinFreqMHz
		c.MinFreqMHz = &v
	}
	if p.MaxFreqMHz != nil {
		v := *p.MaxFreqMHz
		c.MaxFreqMHz = &v
	}
	if p.EPB != nil {
		v := *p.EPB
		c.EPB = &v
	}
	return c
}

// MHz returns a pointer to v, for filling optional bounds.
func MHz(v uint) *uint {
	return &v
}

// Bias returns a pointer to v, for filling EPB.
func Bias(v uint8) *uint8 {
	return &v
}

// Builtins returns fresh copies of the four built-in profiles in their
// canonical order.
func Builtins() []Profile {
	return []Profile{
		{
			Name:        NamePerformance,
			Description: "Maximum performance, highest power consumption",
			Intent:      IntentPerformance,
			Governor:    cpu.GovernorPerformance,
			Turbo:       TurboAlways,
			EPP:         "performance",
			EPB:         Bias(0),
		},
		{
			Name:        NameBalanced,
			Description: "Balance between performance and power efficiency",
			Intent:      IntentBalanced,
			// intel_pstate in active mode only offers performance and powersave.
			Governor: cpu.GovernorPowersave,
			Turbo:    TurboAuto,
			EPP:      "balance_performance",
			EPB:      Bias(6),
		},
		{
			Name:        NamePowerSaver,
			Description: "Maximum battery life, reduced performance",
			Intent:      IntentPowerSave,
			Governor:    cpu.GovernorPowersave,
			Turbo:       TurboNever,
			MaxFreqMHz:  MHz(2400),
			EPP:         "power",
			EPB:         Bias(15),
		},
		{
			Name:        NameSilent,
			Description: "Quiet operation, temperature priority",
			Intent:      IntentPowerSave,
			Governor:    cpu.GovernorPowersave,
			Turbo:       TurboNever,
			MinFreqMHz:  MHz(800),
			MaxFreqMHz:  MHz(2000),
			EPP:         "power",
			EPB:         Bias(15),
		},
	}
}
