package power

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSupply(t *testing.T, root, name string, attrs map[string]string) {
	t.Helper()
	dir := filepath.Join(root, "class", "power_supply", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for k, v := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, k), []byte(v+"\n"), 0o644))
	}
}

func TestOnAC_NamedAdapter(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC", map[string]string{"type": "Mains", "online": "1"})

	on, err := OnAC(root)
	require.NoError(t, err)
	assert.True(t, on)

	writeSupply(t, root, "AC", map[string]string{"online": "0"})
	on, err = OnAC(root)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestOnAC_MainsByType(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "BAT0", map[string]string{"type": "Battery", "capacity": "80"})
	writeSupply(t, root, "ADP1", map[string]string{"type": "Mains", "online": "1"})

	on, err := OnAC(root)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestOnAC_Unknown(t *testing.T) {
	_, err := OnAC(t.TempDir())
	assert.ErrorIs(t, err, ErrUnknown)

	root := t.TempDir()
	writeSupply(t, root, "BAT0", map[string]string{"type": "Battery"})
	_, err = OnAC(root)
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestOnAC_Garbage(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC", map[string]string{"online": "yes"})

	_, err := OnAC(root)
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC", map[string]string{"type": "Mains", "online": "0"})
	writeSupply(t, root, "BAT0", map[string]string{"type": "Battery", "capacity": "42", "status": "Discharging"})

	st, err := Read(root)
	require.NoError(t, err)
	assert.Equal(t, &State{OnAC: false, HasBattery: true, Capacity: 42, Status: "Discharging"}, st)
}

func TestRead_Desktop(t *testing.T) {
	st, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.True(t, st.OnAC)
	assert.False(t, st.HasBattery)
}
