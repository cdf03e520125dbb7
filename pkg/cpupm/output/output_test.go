package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
)

func sampleReport() *Report {
	turbo := true
	return &Report{
		Source: "local",
		Info: &cpu.Info{
			Model:              "Test CPU @ 2.40GHz",
			Vendor:             "GenuineIntel",
			CoreCount:          2,
			Driver:             cpu.IntelPstate,
			MinFreqMHz:         400,
			MaxFreqMHz:         4800,
			AvailableGovernors: []string{"performance", "powersave"},
		},
		Turbo: &turbo,
		Cores: []cpu.CoreStatus{
			{ID: 0, CurrentFreqMHz: 2400, MinFreqMHz: 400, MaxFreqMHz: 4800, Governor: "powersave", Online: true},
			{ID: 1, Online: false},
		},
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "plain", "pretty", "yaml"}, Available())

	f, err := Get("plain")
	require.NoError(t, err)
	assert.IsType(t, &PlainFormatter{}, f)

	_, err = Get("xml")
	assert.ErrorContains(t, err, "unknown formatter: xml")

	r := NewRegistry()
	r.Register("custom", func() Formatter { return &JSONFormatter{} })
	assert.Equal(t, []string{"custom"}, r.Available())
}

func TestFormatMHz(t *testing.T) {
	tests := []struct {
		mhz  uint
		want string
	}{
		{0, "0 Hz"},
		{400, "400 MHz"},
		{2400, "2.4 GHz"},
		{1000, "1 GHz"},
		{4800, "4.8 GHz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMHz(tt.mhz), "mhz=%d", tt.mhz)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, sampleReport()))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))

	info := parsed["info"].(map[string]any)
	assert.Equal(t, "intel_pstate", info["driver"])
	assert.Equal(t, float64(4800), info["max_freq_mhz"])
	assert.Equal(t, true, parsed["turbo"])
	assert.Len(t, parsed["cores"], 2)
	assert.NotContains(t, parsed, "profiles")
	assert.NotContains(t, parsed, "history")
}

func TestYAMLFormatter_Profiles(t *testing.T) {
	var buf bytes.Buffer
	r := &Report{Profiles: profile.Builtins()}
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, r))

	var parsed struct {
		Profiles []map[string]any `yaml:"profiles"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Profiles, 4)
	assert.Equal(t, "Power Saver", parsed.Profiles[2]["name"])
	assert.Equal(t, "never", parsed.Profiles[2]["turbo"])
	assert.Equal(t, "powersave", parsed.Profiles[2]["intent"])
	assert.Equal(t, 2400, parsed.Profiles[2]["max_freq_mhz"])
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, sampleReport()))
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	values := map[string]string{}
	for _, line := range lines {
		if f := strings.Fields(line); len(f) == 2 {
			values[f[0]] = f[1]
		}
	}
	assert.Equal(t, "intel_pstate", values["driver"])
	assert.Equal(t, "4800", values["max_mhz"])
	assert.Equal(t, "on", values["turbo"])
	assert.Contains(t, out, "CORE ONLINE GOVERNOR")

	assert.Equal(t, []string{"1", "off", "-", "0", "0", "0"}, strings.Fields(lines[len(lines)-1]))
}

func TestPlainFormatter_History(t *testing.T) {
	var buf bytes.Buffer
	r := &Report{History: []*history.Entry{{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Operation: history.OpApply,
		Status:    history.StatusReverted,
		Profile:   "Silent",
	}}}
	require.NoError(t, (&PlainFormatter{}).Format(&buf, r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	fields := strings.Fields(lines[1])
	assert.Equal(t, "0f8fad5b", fields[0])
	assert.Equal(t, []string{"apply", "reverted", "Silent", "-"}, fields[2:])
}

func TestPrettyFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "Test CPU @ 2.40GHz")
	assert.Contains(t, out, "400 MHz - 4.8 GHz")
	assert.Contains(t, out, "offline")
	assert.Contains(t, out, "2.4 GHz")
}

func TestPrettyFormatter_SingleProfileShowsDescription(t *testing.T) {
	p, ok := profile.NewRegistry().Get(profile.NameSilent)
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, &Report{Profiles: []profile.Profile{p}}))
	assert.Contains(t, buf.String(), "Quiet operation, temperature priority")
	assert.Contains(t, buf.String(), "800 MHz")
}

func TestPrettyFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, &Report{}))
	assert.Contains(t, buf.String(), "Nothing to show")
}
