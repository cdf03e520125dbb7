package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
)

// PrettyFormatter styles the report with lipgloss for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	if r.Info != nil || r.Turbo != nil {
		w.WriteString(f.formatHeader(r))
		w.WriteString("\n")
	}
	if len(r.Cores) > 0 {
		w.WriteString(f.formatCores(r))
	}
	if len(r.Profiles) > 0 {
		w.WriteString(f.formatProfiles(r))
	}
	if len(r.History) > 0 {
		w.WriteString(f.formatHistory(r.History))
	}
	if r.Empty() {
		w.WriteString(MutedStyle.Render("Nothing to show"))
		w.WriteString("\n")
	}
	return nil
}

func field(label, value string) string {
	return fmt.Sprintf("%s %s", LabelStyle.Render(label+":"), value)
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	var lines []string

	if info := r.Info; info != nil {
		lines = append(lines, TitleStyle.Render(info.Model))
		lines = append(lines, strings.Join([]string{
			field("Vendor", ValueStyle.Render(info.Vendor)),
			field("Driver", ValueStyle.Render(info.Driver.String())),
			field("Cores", ValueStyle.Render(fmt.Sprintf("%d", info.CoreCount))),
		}, "  "))
		lines = append(lines, field("Range", FreqStyle.Render(
			FormatMHz(info.MinFreqMHz)+" - "+FormatMHz(info.MaxFreqMHz))))
		lines = append(lines, field("Governors", ValueStyle.Render(strings.Join(info.AvailableGovernors, ", "))))
	}
	if r.Turbo != nil {
		turbo := MutedStyle.Render("off")
		if *r.Turbo {
			turbo = SuccessStyle.Render("on")
		}
		lines = append(lines, field("Turbo", turbo))
	}
	if r.Source == "daemon" {
		lines = append(lines, MutedStyle.Render("via cpupmd"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// row pads each cell to its column width before styling so ANSI escapes do
// not break alignment.
func row(widths []int, cells []string, style lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = style.Render(padRight(c, widths[i]))
	}
	return "  " + strings.Join(parts, "  ") + "\n"
}

func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}
	return widths
}

func (f *PrettyFormatter) table(title string, header []string, rows [][]string, styleFor func(row []string) lipgloss.Style) string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render(title))
	sb.WriteString("\n")

	widths := columnWidths(header, rows)
	sb.WriteString(row(widths, header, TableHeaderStyle))
	for _, r := range rows {
		sb.WriteString(row(widths, r, styleFor(r)))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (f *PrettyFormatter) formatCores(r *Report) string {
	header := []string{"CORE", "STATE", "GOVERNOR", "CURRENT", "MIN", "MAX"}
	rows := make([][]string, len(r.Cores))
	for i, c := range r.Cores {
		state := "online"
		if !c.Online {
			state = "offline"
		}
		rows[i] = []string{
			fmt.Sprintf("%d", c.ID), state, orDash(c.Governor),
			FormatMHz(c.CurrentFreqMHz), FormatMHz(c.MinFreqMHz), FormatMHz(c.MaxFreqMHz),
		}
	}
	return f.table("Cores", header, rows, func(r []string) lipgloss.Style {
		if r[1] == "offline" {
			return MutedStyle
		}
		return ValueStyle
	})
}

func (f *PrettyFormatter) formatProfiles(r *Report) string {
	header := []string{"NAME", "INTENT", "GOVERNOR", "TURBO", "MIN", "MAX", "EPP", "EPB"}
	rows := make([][]string, len(r.Profiles))
	for i, p := range r.Profiles {
		rows[i] = []string{
			p.Name, p.Intent.String(), p.Governor, p.Turbo.String(),
			optMHz(p.MinFreqMHz), optMHz(p.MaxFreqMHz), orDash(p.EPP), optBias(p.EPB),
		}
	}
	out := f.table("Profiles", header, rows, func([]string) lipgloss.Style { return ValueStyle })
	if len(r.Profiles) == 1 && r.Profiles[0].Description != "" {
		out += "  " + MutedStyle.Render(r.Profiles[0].Description) + "\n"
	}
	return out
}

func (f *PrettyFormatter) formatHistory(entries []*history.Entry) string {
	header := []string{"ID", "WHEN", "OPERATION", "STATUS", "PROFILE", "SOURCE"}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			history.ShortID(e.ID), humanize.Time(e.Timestamp), string(e.Operation),
			string(e.Status), orDash(e.Profile), orDash(e.Source),
		}
	}
	out := f.table("History", header, rows, func(r []string) lipgloss.Style {
		switch history.Status(r[3]) {
		case history.StatusFailed:
			return ErrorStyle
		case history.StatusReverted:
			return WarningStyle
		default:
			return ValueStyle
		}
	})
	if len(entries) == 1 && entries[0].Error != "" {
		out += "  " + ErrorStyle.Render(entries[0].Error) + "\n"
	}
	if len(entries) == 1 {
		out += "  " + MutedStyle.Render(entries[0].Timestamp.Local().Format(time.RFC1123)) + "\n"
	}
	return out
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
