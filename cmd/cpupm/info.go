package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/cpupm/pkg/cpupm/output"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show processor and driver information",
	Long: `Show the processor model, the cpufreq driver, the hardware frequency
range of core 0 and the governors and frequencies it accepts.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-core frequency and governor",
	Long: `Show the current frequency, scaling limits, governor and online state of
every core. When cpupmd is running the active profile is reported too
(with --verbose).`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statusCmd)
}

// runInfo prints the processor description.
func runInfo(cmd *cobra.Command, args []string) error {
	c, err := connectDaemon(appConfig)
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close()
		ctx, cancel := rpcContext(cmd)
		defer cancel()

		info, err := c.Info(ctx)
		if err != nil {
			return err
		}
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		return render(cmd, &output.Report{Source: "daemon", Info: info, Turbo: st.Turbo})
	}

	m, err := newManager(appConfig)
	if err != nil {
		return err
	}
	info, err := m.Info()
	if err != nil {
		return err
	}
	return render(cmd, &output.Report{Source: "local", Info: info, Turbo: turboState(m)})
}

// runStatus prints every core's state.
func runStatus(cmd *cobra.Command, args []string) error {
	c, err := connectDaemon(appConfig)
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close()
		ctx, cancel := rpcContext(cmd)
		defer cancel()

		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		if st.ActiveProfile != "" {
			printVerbose("active profile: %s", st.ActiveProfile)
		}
		return render(cmd, &output.Report{Source: "daemon", Cores: st.Cores, Turbo: st.Turbo})
	}

	m, err := newManager(appConfig)
	if err != nil {
		return err
	}
	cores, err := m.AllCoreStatus()
	if err != nil {
		return err
	}
	return render(cmd, &output.Report{Source: "local", Cores: cores, Turbo: turboState(m)})
}
