package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
)

// PlainFormatter writes tab-aligned text without styling. Frequencies are
// bare MHz numbers so the output pipes cleanly into awk and cut.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	var sections []func(io.Writer)
	if r.Info != nil || r.Turbo != nil {
		sections = append(sections, func(w io.Writer) { f.writeInfo(w, r) })
	}
	if len(r.Cores) > 0 {
		sections = append(sections, func(w io.Writer) { f.writeCores(w, r) })
	}
	if len(r.Profiles) > 0 {
		sections = append(sections, func(w io.Writer) { f.writeProfiles(w, r) })
	}
	if len(r.History) > 0 {
		sections = append(sections, func(w io.Writer) { f.writeHistory(w, r.History) })
	}

	for i, write := range sections {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		write(tw)
	}
	return tw.Flush()
}

func (f *PlainFormatter) writeInfo(w io.Writer, r *Report) {
	if info := r.Info; info != nil {
		fmt.Fprintf(w, "model\t%s\n", info.Model)
		fmt.Fprintf(w, "vendor\t%s\n", info.Vendor)
		fmt.Fprintf(w, "driver\t%s\n", info.Driver)
		fmt.Fprintf(w, "cores\t%d\n", info.CoreCount)
		fmt.Fprintf(w, "min_mhz\t%d\n", info.MinFreqMHz)
		fmt.Fprintf(w, "max_mhz\t%d\n", info.MaxFreqMHz)
		fmt.Fprintf(w, "governors\t%s\n", strings.Join(info.AvailableGovernors, " "))
		if len(info.AvailableFrequencies) > 0 {
			freqs := make([]string, len(info.AvailableFrequencies))
			for i, mhz := range info.AvailableFrequencies {
				freqs[i] = fmt.Sprintf("%d", mhz)
			}
			fmt.Fprintf(w, "frequencies\t%s\n", strings.Join(freqs, " "))
		}
	}
	if r.Turbo != nil {
		fmt.Fprintf(w, "turbo\t%s\n", onOff(*r.Turbo))
	}
}

func (f *PlainFormatter) writeCores(w io.Writer, r *Report) {
	fmt.Fprintln(w, "CORE\tONLINE\tGOVERNOR\tCUR_MHZ\tMIN_MHZ\tMAX_MHZ")
	for _, c := range r.Cores {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\n",
			c.ID, onOff(c.Online), orDash(c.Governor), c.CurrentFreqMHz, c.MinFreqMHz, c.MaxFreqMHz)
	}
}

func (f *PlainFormatter) writeProfiles(w io.Writer, r *Report) {
	fmt.Fprintln(w, "NAME\tINTENT\tGOVERNOR\tTURBO\tMIN\tMAX\tEPP\tEPB")
	for _, p := range r.Profiles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Name, p.Intent, p.Governor, p.Turbo,
			optMHz(p.MinFreqMHz), optMHz(p.MaxFreqMHz), orDash(p.EPP), optBias(p.EPB))
	}
}

func (f *PlainFormatter) writeHistory(w io.Writer, entries []*history.Entry) {
	fmt.Fprintln(w, "ID\tTIME\tOPERATION\tSTATUS\tPROFILE\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			history.ShortID(e.ID), e.Timestamp.Local().Format(time.RFC3339),
			e.Operation, e.Status, orDash(e.Profile), orDash(e.Source))
	}
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
