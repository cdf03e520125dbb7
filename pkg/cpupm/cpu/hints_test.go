package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu/cputest"
)

func TestTurbo_IntelInverted(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Driver: cputest.IntelPstate})
	m := newTestManager(t, fake, true)

	enabled, err := m.TurboEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, m.SetTurbo(false))
	assert.Equal(t, "1", fake.Read("intel_pstate", "no_turbo"))

	enabled, err = m.TurboEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, m.SetTurbo(true))
	assert.Equal(t, "0", fake.Read("intel_pstate", "no_turbo"))
}

func TestTurbo_AcpiBoost(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Driver: cputest.AcpiCpufreq})
	m := newTestManager(t, fake, true)

	enabled, err := m.TurboEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, m.SetTurbo(false))
	assert.Equal(t, "0", fake.Read("cpufreq", "boost"))

	enabled, err = m.TurboEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestTurbo_AcpiWithoutBoostFile(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Driver: cputest.AcpiCpufreq, NoBoostFile: true})
	m := newTestManager(t, fake, true)

	enabled, err := m.TurboEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	err = m.SetTurbo(true)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestTurbo_UnsupportedDrivers(t *testing.T) {
	for _, driver := range []string{cputest.AmdPstate, "cppc_cpufreq"} {
		t.Run(driver, func(t *testing.T) {
			fake := cputest.New(t, cputest.Options{Driver: driver})
			m := newTestManager(t, fake, true)

			_, err := m.TurboEnabled()
			assert.ErrorIs(t, err, ErrNotSupported)

			err = m.SetTurbo(true)
			assert.ErrorIs(t, err, ErrNotSupported)
		})
	}
}

func TestEPP(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Driver: cputest.IntelPstate})
	m := newTestManager(t, fake, true)

	epp, err := m.EPP(0)
	require.NoError(t, err)
	assert.Equal(t, "balance_performance", epp)

	require.NoError(t, m.SetEPP("power"))
	for core := 0; core < 4; core++ {
		assert.Equal(t, "power", fake.ReadCore(core, "energy_performance_preference"))
	}
}

func TestSetEPP_SkipsCoresWithoutAttribute(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Driver: cputest.IntelPstate})
	fake.Remove("cpu1", "cpufreq", "energy_performance_preference")
	m := newTestManager(t, fake, true)

	require.NoError(t, m.SetEPP("performance"))
	assert.Equal(t, "performance", fake.ReadCore(0, "energy_performance_preference"))
	assert.Equal(t, "performance", fake.ReadCore(2, "energy_performance_preference"))

	_, err := m.EPP(1)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestSetEPP_NonIntel(t *testing.T) {
	for _, driver := range []string{cputest.AmdPstate, cputest.AcpiCpufreq, "cppc_cpufreq"} {
		t.Run(driver, func(t *testing.T) {
			fake := cputest.New(t, cputest.Options{Driver: driver})
			m := newTestManager(t, fake, true)

			assert.ErrorIs(t, m.SetEPP("power"), ErrNotSupported)
			assert.ErrorIs(t, m.SetEPB(6), ErrNotSupported)
		})
	}
}

func TestEPB(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Driver: cputest.IntelPstate})
	m := newTestManager(t, fake, true)

	bias, err := m.EPB(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), bias)

	require.NoError(t, m.SetEPB(15))
	assert.Equal(t, "15", fake.Read("cpu3", "power", "energy_perf_bias"))

	err = m.SetEPB(16)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, "15", fake.Read("cpu3", "power", "energy_perf_bias"))
}
