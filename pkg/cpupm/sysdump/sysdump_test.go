package sysdump

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu/cputest"
)

func TestCollect_FakeIntel(t *testing.T) {
	fake := cputest.New(t, cputest.Options{Cores: 2, Driver: cputest.IntelPstate})

	dump, err := Collect(context.Background(), fake.Base)
	require.NoError(t, err)
	assert.Equal(t, cpu.IntelPstate, dump.Driver)

	a, ok := dump.Get("cpu1/cpufreq/scaling_driver")
	require.True(t, ok)
	assert.Equal(t, "intel_pstate", a.Value)

	a, ok = dump.Get("intel_pstate/no_turbo")
	require.True(t, ok)
	assert.Equal(t, "0", a.Value)

	a, ok = dump.Get("cpu0/power/energy_perf_bias")
	require.True(t, ok)
	assert.Equal(t, "6", a.Value)

	_, ok = dump.Get("cpu1/online")
	assert.False(t, ok, "only cpufreq and power directories are walked")

	for i := 1; i < len(dump.Attributes); i++ {
		assert.Less(t, dump.Attributes[i-1].Path, dump.Attributes[i].Path)
	}
}

func TestCollect_PolicySymlinksReadOnce(t *testing.T) {
	base := t.TempDir()
	policy := filepath.Join(base, "cpufreq", "policy0")
	require.NoError(t, os.MkdirAll(policy, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(policy, "scaling_governor"), []byte("schedutil\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(policy, "scaling_driver"), []byte("amd-pstate\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "cpu0"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join("..", "cpufreq", "policy0"), filepath.Join(base, "cpu0", "cpufreq")))

	dump, err := Collect(context.Background(), base)
	require.NoError(t, err)
	require.Len(t, dump.Attributes, 2)
	assert.Equal(t, "cpufreq/policy0/scaling_driver", dump.Attributes[0].Path)
	assert.Equal(t, "schedutil", dump.Attributes[1].Value)
	assert.Equal(t, cpu.Unknown, dump.Driver)
}

func TestCollect_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	fake := cputest.New(t, cputest.Options{Cores: 1})
	require.NoError(t, os.Chmod(fake.CorePath(0, "scaling_setspeed"), 0o200))

	dump, err := Collect(context.Background(), fake.Base)
	require.NoError(t, err)
	a, ok := dump.Get("cpu0/cpufreq/scaling_setspeed")
	require.True(t, ok)
	assert.Empty(t, a.Value)
	assert.Contains(t, a.Error, "permission denied")
}

func TestCollect_Errors(t *testing.T) {
	_, err := Collect(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	fake := cputest.New(t, cputest.Options{Cores: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Collect(ctx, fake.Base)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDump_WriteText(t *testing.T) {
	d := &Dump{
		Base:   "/sys/devices/system/cpu",
		Driver: cpu.AcpiCpufreq,
		Attributes: []Attribute{
			{Path: "cpu0/cpufreq/cpuinfo_cur_freq", Error: "permission denied"},
			{Path: "cpu0/cpufreq/scaling_governor", Value: "ondemand"},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, d.WriteText(&buf))
	assert.Equal(t, "# /sys/devices/system/cpu (acpi-cpufreq)\n"+
		"cpu0/cpufreq/cpuinfo_cur_freq ! permission denied\n"+
		"cpu0/cpufreq/scaling_governor = ondemand\n", buf.String())
}
