package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu/cputest"
)

func newTestManager(t *testing.T, fake *cputest.Fake, privileged bool) *Manager {
	t.Helper()
	m, err := New(
		WithSysRoot(fake.SysRoot),
		WithProcRoot(fake.ProcRoot),
		WithPrivilegeCheck(func() bool { return privileged }),
	)
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Cores: 8, Driver: cputest.IntelPstate})
	m := newTestManager(t, fake, true)

	assert.Equal(t, 8, m.CoreCount())
	assert.Equal(t, IntelPstate, m.Driver())
	assert.Equal(t, fake.Base, m.BaseDir())
	assert.True(t, m.Writable())
}

func TestNew_MissingCPUDirectory(t *testing.T) {
	_, err := New(WithSysRoot(t.TempDir()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
}

func TestWriteGate_DeniesEveryMutation(t *testing.T) {
	fake := cputest.New(t, cputest.Options{
		Driver:    cputest.IntelPstate,
		Governors: []string{"performance", "powersave"},
		Governor:  "powersave",
	})
	m := newTestManager(t, fake, false)
	assert.False(t, m.Writable())

	tests := []struct {
		name string
		fn   func() error
	}{
		{"SetFrequency", func() error { return m.SetFrequency(1, 2000) }},
		{"SetFrequencyAll", func() error { return m.SetFrequencyAll(2000) }},
		{"SetScalingMinFreq", func() error { return m.SetScalingMinFreq(0, 1000) }},
		{"SetScalingMaxFreq", func() error { return m.SetScalingMaxFreq(0, 3000) }},
		{"SetScalingLimitsAll", func() error { return m.SetScalingLimitsAll(1000, 3000) }},
		{"SetGovernor", func() error { return m.SetGovernor(0, "performance") }},
		{"SetGovernorAll", func() error { return m.SetGovernorAll("performance") }},
		{"SetTurbo", func() error { return m.SetTurbo(false) }},
		{"SetEPP", func() error { return m.SetEPP("power") }},
		{"SetEPB", func() error { return m.SetEPB(15) }},
		{"SetCoreOnline", func() error { return m.SetCoreOnline(2, false) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPermissionDenied)
			assert.Contains(t, err.Error(), "sudo")
			assert.Contains(t, err.Error(), "polkit")
		})
	}

	// Nothing was written.
	assert.Equal(t, "powersave", fake.ReadCore(0, "scaling_governor"))
	assert.Equal(t, "400000", fake.ReadCore(0, "scaling_min_freq"))
	assert.Equal(t, "4800000", fake.ReadCore(0, "scaling_max_freq"))
	assert.Equal(t, "0", fake.Read("intel_pstate", "no_turbo"))
	assert.Equal(t, "balance_performance", fake.ReadCore(1, "energy_performance_preference"))
	assert.Equal(t, "6", fake.Read("cpu1", "power", "energy_perf_bias"))
	assert.Equal(t, "1", fake.Read("cpu2", "online"))
}

func TestCheckCore(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Cores: 2})
	m := newTestManager(t, fake, true)

	for _, core := range []int{-1, 2, 100} {
		_, err := m.Frequency(core)
		assert.ErrorIs(t, err, ErrInvalidValue, "core %d", core)

		err = m.SetGovernor(core, "performance")
		assert.ErrorIs(t, err, ErrInvalidValue, "core %d", core)
	}
}

func TestOpError(t *testing.T) {
	cause := errors.New("boom")
	err := opErr("set governor", 3, ErrIO, cause)

	assert.Equal(t, "set governor (core 3): io error: boom", err.Error())
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvalidValue)

	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 3, oe.Core)

	global := unsupported("set turbo", AmdPstate)
	assert.Equal(t, "set turbo: not supported: driver amd_pstate", global.Error())
}
