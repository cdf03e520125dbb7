package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/cpupm/cmd/cpupm/tui"
	"github.com/jamesainslie/cpupm/pkg/client"
	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch per-core frequencies live",
	Long: `Open a full-screen view of every core's frequency, limits and governor,
refreshed every --interval. Press q to quit, r to refresh immediately.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var monitorInterval time.Duration

func init() {
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", tui.DefaultInterval, "refresh interval")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	c, err := connectDaemon(appConfig)
	if err != nil {
		return err
	}

	opts := tui.Options{Interval: monitorInterval}
	if c != nil {
		defer c.Close()
		opts.Source = daemonSource(cmd, c)
		ctx, cancel := rpcContext(cmd)
		if info, err := c.Info(ctx); err == nil {
			opts.Title = info.Model
		}
		cancel()
	} else {
		m, err := newManager(appConfig)
		if err != nil {
			return err
		}
		opts.Source = localSource(m)
		if info, err := m.Info(); err == nil {
			opts.Title = info.Model
		}
	}

	return tui.Run(opts)
}

// localSource samples sysfs directly.
func localSource(m *cpu.Manager) tui.Source {
	return func() (*tui.Sample, error) {
		cores, err := m.AllCoreStatus()
		if err != nil {
			return nil, err
		}
		s := &tui.Sample{Cores: cores}
		if on, err := m.TurboEnabled(); err == nil {
			s.Turbo = &on
		}
		return s, nil
	}
}

// daemonSource samples through cpupmd, which also reports the active
// profile.
func daemonSource(cmd *cobra.Command, c *client.Client) tui.Source {
	return func() (*tui.Sample, error) {
		ctx, cancel := rpcContext(cmd)
		defer cancel()
		st, err := c.Status(ctx)
		if err != nil {
			return nil, err
		}
		return &tui.Sample{Cores: st.Cores, Turbo: st.Turbo, Profile: st.ActiveProfile}, nil
	}
}
