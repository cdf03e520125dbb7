package cpupmv1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
)

func TestEncodeDecode_Info(t *testing.T) {
	in := &cpu.Info{
		Model:                "Test CPU",
		Vendor:               "AuthenticAMD",
		CoreCount:            16,
		Driver:               cpu.AmdPstate,
		MinFreqMHz:           400,
		MaxFreqMHz:           5758,
		AvailableGovernors:   []string{"performance", "powersave"},
		AvailableFrequencies: []uint{},
	}

	s, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, "amd_pstate", s.Fields["driver"].GetStringValue())
	assert.Equal(t, float64(5758), s.Fields["max_freq_mhz"].GetNumberValue())

	var out cpu.Info
	require.NoError(t, Decode(s, &out))
	assert.Equal(t, *in, out)
}

func TestEncodeDecode_ProfileKeepsOptionalFields(t *testing.T) {
	in := ProfilesReply{Profiles: profile.Builtins()}

	s, err := Encode(in)
	require.NoError(t, err)

	var out ProfilesReply
	require.NoError(t, Decode(s, &out))
	require.Len(t, out.Profiles, 4)
	assert.Equal(t, in.Profiles, out.Profiles)
	assert.Nil(t, out.Profiles[0].MaxFreqMHz)
	assert.Equal(t, profile.TurboNever, out.Profiles[3].Turbo)
}

func TestEncodeDecode_Entry(t *testing.T) {
	turbo := false
	in := &history.Entry{
		ID:        "5c3f9a1e-0000-4000-8000-000000000001",
		Timestamp: time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC),
		Operation: history.OpApply,
		Status:    history.StatusOK,
		Profile:   "Balanced",
		Before: &history.Snapshot{
			Cores: []history.CoreState{{ID: 0, Governor: "schedutil", MinFreqMHz: 400, MaxFreqMHz: 4800}},
			Turbo: &turbo,
		},
	}

	s, err := Encode(in)
	require.NoError(t, err)

	var out history.Entry
	require.NoError(t, Decode(s, &out))
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	out.Timestamp = in.Timestamp
	assert.Equal(t, *in, out)
}

func TestEncode_RejectsNonObject(t *testing.T) {
	_, err := Encode([]string{"a"})
	assert.Error(t, err)
}
