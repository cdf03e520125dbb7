package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/output"
)

// DefaultInterval is the refresh period when Options.Interval is zero.
const DefaultInterval = time.Second

// Sample is one reading of the processor state.
type Sample struct {
	Cores []cpu.CoreStatus
	// Turbo is nil when the driver has no turbo control.
	Turbo *bool
	// Profile is the daemon's active profile, if known.
	Profile string
}

// Source produces a fresh sample. It is called from a tea.Cmd goroutine.
type Source func() (*Sample, error)

// Options configures the monitor.
type Options struct {
	Title    string // e.g. the processor model
	Source   Source
	Interval time.Duration
}

// Model is the Bubble Tea model for the monitor.
type Model struct {
	opts    Options
	table   table.Model
	sample  *Sample
	err     error
	updated time.Time
	width   int
	height  int
}

// sampleMsg carries the result of one Source call.
type sampleMsg struct {
	sample *Sample
	err    error
	at     time.Time
}

// tickMsg triggers the next sample.
type tickMsg struct{}

var columns = []table.Column{
	{Title: "CORE", Width: 5},
	{Title: "ONLINE", Width: 7},
	{Title: "GOVERNOR", Width: 14},
	{Title: "CURRENT", Width: 10},
	{Title: "MIN", Width: 10},
	{Title: "MAX", Width: 10},
	{Title: "LOAD", Width: 22},
}

// NewModel creates a monitor model.
func NewModel(opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return Model{
		opts:   opts,
		table:  t,
		width:  80,
		height: 24,
	}
}

// Init starts sampling.
func (m Model) Init() tea.Cmd {
	return m.fetch()
}

// fetch returns a command that reads one sample.
func (m Model) fetch() tea.Cmd {
	source := m.opts.Source
	return func() tea.Msg {
		s, err := source()
		return sampleMsg{sample: s, err: err, at: time.Now()}
	}
}

// tick schedules the next sample.
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Header, blank line and footer.
		m.table.SetHeight(max(msg.Height-6, 3))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		}

	case sampleMsg:
		m.updated = msg.at
		m.err = msg.err
		if msg.err == nil && msg.sample != nil {
			m.sample = msg.sample
			m.table.SetRows(coreRows(msg.sample.Cores))
		}
		return m, m.tick()

	case tickMsg:
		return m, m.fetch()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the monitor.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorTextStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}

	footer := "q quit • r refresh • ↑/↓ scroll"
	if !m.updated.IsZero() {
		footer += " • updated " + m.updated.Format("15:04:05")
	}
	b.WriteString(mutedTextStyle.Render(footer))
	return b.String()
}

// header renders the title line with turbo state, active profile and
// average frequency.
func (m Model) header() string {
	title := m.opts.Title
	if title == "" {
		title = "cpupm monitor"
	}
	parts := []string{titleStyle.Render(title)}

	if s := m.sample; s != nil {
		if avg, ok := averageMHz(s.Cores); ok {
			parts = append(parts, "avg "+freqTextStyle.Render(output.FormatMHz(avg)))
		}
		if s.Turbo != nil {
			turbo := mutedTextStyle.Render("turbo off")
			if *s.Turbo {
				turbo = successTextStyle.Render("turbo on")
			}
			parts = append(parts, turbo)
		}
		if s.Profile != "" {
			parts = append(parts, "profile "+titleStyle.Render(s.Profile))
		}
		parts = append(parts, mutedTextStyle.Render(fmt.Sprintf("%d cores", len(s.Cores))))
	}
	return " " + strings.Join(parts, mutedTextStyle.Render("  •  "))
}

// averageMHz averages the current frequency of online cores.
func averageMHz(cores []cpu.CoreStatus) (uint, bool) {
	var sum, n uint
	for _, c := range cores {
		if c.Online {
			sum += c.CurrentFreqMHz
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / n, true
}

// coreRows converts core status to table rows. The load column shows the
// current frequency as a bar between the core's scaling limits.
func coreRows(cores []cpu.CoreStatus) []table.Row {
	rows := make([]table.Row, 0, len(cores))
	for _, c := range cores {
		online := "yes"
		if !c.Online {
			online = "no"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", c.ID),
			online,
			c.Governor,
			output.FormatMHz(c.CurrentFreqMHz),
			output.FormatMHz(c.MinFreqMHz),
			output.FormatMHz(c.MaxFreqMHz),
			freqBar(c, 20),
		})
	}
	return rows
}

// freqBar renders where the current frequency sits between the limits.
func freqBar(c cpu.CoreStatus, width int) string {
	if !c.Online || c.MaxFreqMHz <= c.MinFreqMHz || width <= 0 {
		return strings.Repeat("·", width)
	}
	cur := min(max(c.CurrentFreqMHz, c.MinFreqMHz), c.MaxFreqMHz)
	filled := int(uint64(cur-c.MinFreqMHz) * uint64(width) / uint64(c.MaxFreqMHz-c.MinFreqMHz))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Run starts the monitor and blocks until the user quits.
func Run(opts Options) error {
	if opts.Source == nil {
		return fmt.Errorf("monitor: no sample source")
	}
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
