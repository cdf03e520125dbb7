// Package power reports the machine's power source from
// /sys/class/power_supply.
package power

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnknown means no mains adapter could be found.
var ErrUnknown = errors.New("power source unknown")

// State summarises the power supplies.
type State struct {
	OnAC       bool   `json:"on_ac" yaml:"on_ac"`
	HasBattery bool   `json:"has_battery" yaml:"has_battery"`
	Capacity   int    `json:"battery_percent,omitempty" yaml:"battery_percent,omitempty"`
	Status     string `json:"battery_status,omitempty" yaml:"battery_status,omitempty"`
}

func supplyDir(sysRoot string) string {
	return filepath.Join(sysRoot, "class", "power_supply")
}

// OnAC reports whether mains power is connected. The adapter named AC is
// checked first; otherwise the first supply of type Mains is used.
func OnAC(sysRoot string) (bool, error) {
	dir := supplyDir(sysRoot)

	if online, err := readFlag(filepath.Join(dir, "AC", "online")); err == nil {
		return online, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnknown, err)
	}
	for _, entry := range entries {
		if readTrimmed(filepath.Join(dir, entry.Name(), "type")) != "Mains" {
			continue
		}
		return readFlag(filepath.Join(dir, entry.Name(), "online"))
	}
	return false, ErrUnknown
}

// Read returns the adapter state plus the first battery's charge. Machines
// with no adapter and no battery are reported as on AC.
func Read(sysRoot string) (*State, error) {
	st := &State{}
	dir := supplyDir(sysRoot)

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading power supplies: %w", err)
	}
	for _, entry := range entries {
		if readTrimmed(filepath.Join(dir, entry.Name(), "type")) != "Battery" {
			continue
		}
		st.HasBattery = true
		st.Status = readTrimmed(filepath.Join(dir, entry.Name(), "status"))
		if c, err := strconv.Atoi(readTrimmed(filepath.Join(dir, entry.Name(), "capacity"))); err == nil {
			st.Capacity = c
		}
		break
	}

	onAC, err := OnAC(sysRoot)
	switch {
	case err == nil:
		st.OnAC = onAC
	case errors.Is(err, ErrUnknown) && !st.HasBattery:
		st.OnAC = true
	default:
		return nil, err
	}
	return st, nil
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readFlag(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v == 1, nil
}
