// Package output renders cpupm reports in several formats (pretty, plain,
// json, yaml). Formatters are looked up by name in a registry so the CLI can
// select one with --output.
//
//	f, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, report); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
)

// Report is everything a command may print. Empty sections are skipped by
// every formatter.
type Report struct {
	// Source is "local" or "daemon".
	Source   string            `json:"source,omitempty" yaml:"source,omitempty"`
	Info     *cpu.Info         `json:"info,omitempty" yaml:"info,omitempty"`
	Turbo    *bool             `json:"turbo,omitempty" yaml:"turbo,omitempty"`
	Cores    []cpu.CoreStatus  `json:"cores,omitempty" yaml:"cores,omitempty"`
	Profiles []profile.Profile `json:"profiles,omitempty" yaml:"profiles,omitempty"`
	History  []*history.Entry  `json:"history,omitempty" yaml:"history,omitempty"`
}

// Empty reports whether r has nothing to print.
func (r *Report) Empty() bool {
	return r.Info == nil && r.Turbo == nil && len(r.Cores) == 0 &&
		len(r.Profiles) == 0 && len(r.History) == 0
}

// Formatter writes a Report.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a Formatter.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a factory, replacing any formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the sorted formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns the names in the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// FormatMHz renders a frequency with an SI prefix, e.g. 2400 -> "2.4 GHz".
func FormatMHz(mhz uint) string {
	return humanize.SIWithDigits(float64(mhz)*1e6, 2, "Hz")
}

// optMHz renders an optional profile bound.
func optMHz(v *uint) string {
	if v == nil {
		return "-"
	}
	return FormatMHz(*v)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optBias(v *uint8) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
