package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
)

func testCores() []cpu.CoreStatus {
	return []cpu.CoreStatus{
		{ID: 0, Online: true, Governor: "powersave", CurrentFreqMHz: 2400, MinFreqMHz: 400, MaxFreqMHz: 4400},
		{ID: 1, Online: true, Governor: "powersave", CurrentFreqMHz: 1200, MinFreqMHz: 400, MaxFreqMHz: 4400},
		{ID: 2, Online: false},
	}
}

func TestFreqBar(t *testing.T) {
	tests := []struct {
		name     string
		core     cpu.CoreStatus
		expected string
	}{
		{"midpoint", cpu.CoreStatus{Online: true, CurrentFreqMHz: 2400, MinFreqMHz: 400, MaxFreqMHz: 4400}, "█████░░░░░"},
		{"at min", cpu.CoreStatus{Online: true, CurrentFreqMHz: 400, MinFreqMHz: 400, MaxFreqMHz: 4400}, "░░░░░░░░░░"},
		{"above max clamps", cpu.CoreStatus{Online: true, CurrentFreqMHz: 5000, MinFreqMHz: 400, MaxFreqMHz: 4400}, "██████████"},
		{"below min clamps", cpu.CoreStatus{Online: true, CurrentFreqMHz: 100, MinFreqMHz: 400, MaxFreqMHz: 4400}, "░░░░░░░░░░"},
		{"offline", cpu.CoreStatus{Online: false, CurrentFreqMHz: 2400, MinFreqMHz: 400, MaxFreqMHz: 4400}, "··········"},
		{"flat range", cpu.CoreStatus{Online: true, CurrentFreqMHz: 2000, MinFreqMHz: 2000, MaxFreqMHz: 2000}, "··········"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := freqBar(tt.core, 10); got != tt.expected {
				t.Errorf("freqBar() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAverageMHz(t *testing.T) {
	avg, ok := averageMHz(testCores())
	if !ok || avg != 1800 {
		t.Errorf("averageMHz() = %d, %t; want 1800, true", avg, ok)
	}

	if _, ok := averageMHz([]cpu.CoreStatus{{ID: 0, Online: false}}); ok {
		t.Error("averageMHz() with no online cores should report false")
	}
}

func TestCoreRows(t *testing.T) {
	rows := coreRows(testCores())
	if len(rows) != 3 {
		t.Fatalf("coreRows() returned %d rows, want 3", len(rows))
	}
	if rows[0][0] != "0" || rows[0][1] != "yes" || rows[0][3] != "2.4 GHz" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if len(rows[0]) != len(columns) {
		t.Errorf("row has %d cells, want %d", len(rows[0]), len(columns))
	}
	if rows[2][1] != "no" {
		t.Errorf("offline core shown as %q", rows[2][1])
	}
}

func TestModel_SampleUpdatesTable(t *testing.T) {
	turbo := true
	calls := 0
	m := NewModel(Options{
		Title: "Test CPU",
		Source: func() (*Sample, error) {
			calls++
			return &Sample{Cores: testCores(), Turbo: &turbo, Profile: "Balanced"}, nil
		},
	})

	msg := m.Init()()
	if calls != 1 {
		t.Fatalf("Init should sample once, got %d calls", calls)
	}

	updated, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatal("a sample should schedule the next tick")
	}
	model := updated.(Model)
	if got := len(model.table.Rows()); got != 3 {
		t.Errorf("table has %d rows, want 3", got)
	}

	view := model.View()
	for _, want := range []string{"Test CPU", "turbo on", "Balanced", "3 cores", "updated"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_SampleErrorKeepsLastRows(t *testing.T) {
	m := NewModel(Options{Source: func() (*Sample, error) { return nil, nil }})

	updated, _ := m.Update(sampleMsg{sample: &Sample{Cores: testCores()}, at: time.Now()})
	updated, _ = updated.(Model).Update(sampleMsg{err: errors.New("sysfs gone"), at: time.Now()})
	model := updated.(Model)

	if got := len(model.table.Rows()); got != 3 {
		t.Errorf("table has %d rows after error, want 3", got)
	}
	if !strings.Contains(model.View(), "sysfs gone") {
		t.Error("view should show the sample error")
	}
}

func TestModel_Keys(t *testing.T) {
	m := NewModel(Options{Source: func() (*Sample, error) { return &Sample{}, nil }})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatal("r should return a command")
	}
	if _, ok := cmd().(sampleMsg); !ok {
		t.Error("r should sample immediately")
	}
}

func TestModel_WindowResize(t *testing.T) {
	m := NewModel(Options{Source: func() (*Sample, error) { return &Sample{}, nil }})

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model := updated.(Model)
	if model.width != 120 || model.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", model.width, model.height)
	}
}

func TestRun_RequiresSource(t *testing.T) {
	if err := Run(Options{}); err == nil {
		t.Error("Run without a source should fail")
	}
}
