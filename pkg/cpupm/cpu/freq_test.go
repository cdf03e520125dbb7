package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu/cputest"
)

func TestFrequency_TruncatesKHz(t *testing.T) {
	fake := cputest.New(t, cputest.Options{CurKHz: 2400999})
	m := newTestManager(t, fake, true)

	mhz, err := m.Frequency(0)
	require.NoError(t, err)
	assert.Equal(t, uint(2400), mhz)
}

func TestFrequency_Unparsable(t *testing.T) {
	fake := cputest.New(t, cputest.Options{})
	fake.WriteCore(1, "scaling_cur_freq", "garbage")
	m := newTestManager(t, fake, true)

	_, err := m.Frequency(1)
	assert.ErrorIs(t, err, ErrIO)
}

func TestFrequency_MissingFile(t *testing.T) {
	fake := cputest.New(t, cputest.Options{})
	fake.Remove("cpu2", "cpufreq", "scaling_cur_freq")
	m := newTestManager(t, fake, true)

	_, err := m.Frequency(2)
	assert.ErrorIs(t, err, ErrIO)

	_, err = m.Frequencies()
	assert.ErrorIs(t, err, ErrIO)
}

func TestFrequency_WithinScalingLimits(t *testing.T) {
	tests := []struct {
		name   string
		opts   cputest.Options
		curKHz []string
	}{
		{
			name:   "defaults",
			opts:   cputest.Options{},
			curKHz: []string{"2400000", "2400000", "2400000", "2400000"},
		},
		{
			name:   "at the limits",
			opts:   cputest.Options{Cores: 3, HWMinKHz: 800000, HWMaxKHz: 3600000},
			curKHz: []string{"800000", "3600000", "800999"},
		},
		{
			name:   "mixed load",
			opts:   cputest.Options{Cores: 6, Driver: cputest.IntelPstate},
			curKHz: []string{"400000", "1200500", "4799999", "2400000", "3100000", "4800000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := cputest.New(t, tt.opts)
			for core, v := range tt.curKHz {
				fake.WriteCore(core, "scaling_cur_freq", v)
			}
			m := newTestManager(t, fake, false)
			require.Equal(t, len(tt.curKHz), m.CoreCount())

			for core := 0; core < m.CoreCount(); core++ {
				cur, err := m.Frequency(core)
				require.NoError(t, err)
				lo, err := m.ScalingMinFreq(core)
				require.NoError(t, err)
				hi, err := m.ScalingMaxFreq(core)
				require.NoError(t, err)

				assert.GreaterOrEqual(t, cur, lo, "core %d", core)
				assert.LessOrEqual(t, cur, hi, "core %d", core)
			}
		})
	}
}

func TestSetFrequency_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts cputest.Options
		mhz  uint
		want string
	}{
		{"acpi", cputest.Options{}, 2400, "2400000"},
		{"hardware min", cputest.Options{Cores: 2}, 400, "400000"},
		{"hardware max", cputest.Options{Cores: 8}, 4800, "4800000"},
		{"odd value", cputest.Options{Cores: 3, Governor: "powersave"}, 1733, "1733000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := cputest.New(t, tt.opts)
			m := newTestManager(t, fake, true)

			for core := 0; core < m.CoreCount(); core++ {
				require.NoError(t, m.SetFrequency(core, tt.mhz))
				assert.Equal(t, tt.want, fake.ReadCore(core, "scaling_setspeed"), "core %d", core)

				// The kernel reflects the new target in scaling_cur_freq.
				fake.WriteCore(core, "scaling_cur_freq", fake.ReadCore(core, "scaling_setspeed"))
				got, err := m.Frequency(core)
				require.NoError(t, err)
				assert.Equal(t, tt.mhz, got, "core %d", core)
			}
		})
	}
}

func TestFrequencies(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Cores: 3})
	fake.WriteCore(1, "scaling_cur_freq", "1800000")
	m := newTestManager(t, fake, true)

	freqs, err := m.Frequencies()
	require.NoError(t, err)
	assert.Equal(t, []uint{2400, 1800, 2400}, freqs)
}

func TestSetFrequency(t *testing.T) {
	fake := cputest.New(t, cputest.Options{})
	m := newTestManager(t, fake, true)

	require.NoError(t, m.SetFrequency(1, 1600))
	assert.Equal(t, "1600000", fake.ReadCore(1, "scaling_setspeed"))

	require.NoError(t, m.SetFrequencyAll(2000))
	for core := 0; core < 4; core++ {
		assert.Equal(t, "2000000", fake.ReadCore(core, "scaling_setspeed"))
	}
}

func TestSetFrequencyAll_FailsFast(t *testing.T) {
	fake := cputest.New(t, cputest.Options{})
	fake.Remove("cpu2", "cpufreq", "scaling_setspeed")
	m := newTestManager(t, fake, true)

	err := m.SetFrequencyAll(1200)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)

	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 2, oe.Core)

	assert.Equal(t, "1200000", fake.ReadCore(0, "scaling_setspeed"))
	assert.Equal(t, "1200000", fake.ReadCore(1, "scaling_setspeed"))
	assert.Equal(t, "<unsupported>", fake.ReadCore(3, "scaling_setspeed"))
}

func TestScalingLimits(t *testing.T) {
	fake := cputest.New(t, cputest.Options{})
	m := newTestManager(t, fake, true)

	require.NoError(t, m.SetScalingMinFreq(0, 800))
	require.NoError(t, m.SetScalingMaxFreq(0, 3200))

	minFreq, err := m.ScalingMinFreq(0)
	require.NoError(t, err)
	maxFreq, err := m.ScalingMaxFreq(0)
	require.NoError(t, err)

	assert.Equal(t, uint(800), minFreq)
	assert.Equal(t, uint(3200), maxFreq)
	assert.Equal(t, "800000", fake.ReadCore(0, "scaling_min_freq"))
	assert.Equal(t, "3200000", fake.ReadCore(0, "scaling_max_freq"))
}

func TestSetScalingLimitsAll(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Cores: 2})
	m := newTestManager(t, fake, true)

	require.NoError(t, m.SetScalingLimitsAll(1000, 2000))
	for core := 0; core < 2; core++ {
		assert.Equal(t, "1000000", fake.ReadCore(core, "scaling_min_freq"))
		assert.Equal(t, "2000000", fake.ReadCore(core, "scaling_max_freq"))
	}

	err := m.SetScalingLimitsAll(3000, 2000)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, "1000000", fake.ReadCore(0, "scaling_min_freq"))
}

func TestHardwareLimits(t *testing.T) {
	fake := cputest.New(t, cputest.Options{HWMinKHz: 800000, HWMaxKHz: 3600000})
	m := newTestManager(t, fake, true)

	minFreq, err := m.HardwareMinFreq(3)
	require.NoError(t, err)
	maxFreq, err := m.HardwareMaxFreq(3)
	require.NoError(t, err)

	assert.Equal(t, uint(800), minFreq)
	assert.Equal(t, uint(3600), maxFreq)
}

func TestAvailableFrequencies(t *testing.T) {
	fake := cputest.New(t, cputest.Options{FrequenciesKHz: []uint64{3600000, 2800000, 2200000}})
	m := newTestManager(t, fake, true)

	freqs, err := m.AvailableFrequencies(0)
	require.NoError(t, err)
	assert.Equal(t, []uint{3600, 2800, 2200}, freqs)
}

func TestAvailableFrequencies_AbsentFile(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Driver: cputest.IntelPstate})
	m := newTestManager(t, fake, true)

	freqs, err := m.AvailableFrequencies(0)
	require.NoError(t, err)
	assert.NotNil(t, freqs)
	assert.Empty(t, freqs)
}
