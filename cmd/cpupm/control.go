package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/output"
)

// allCores selects every core in --core flags.
const allCores = -1

var (
	governorCore int
	freqCore     int
	eppBias      int
)

var governorCmd = &cobra.Command{
	Use:   "governor [name]",
	Short: "Show or set the scaling governor",
	Long: `Without an argument, show each core's governor and the governors core 0
accepts. With a name, set it on every core (or one core with --core).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGovernor,
}

var freqCmd = &cobra.Command{
	Use:   "freq",
	Short: "Set frequencies and scaling limits",
	Long: `Frequencies accept plain MHz (2400) or an SI value (2.4GHz, 800MHz).

Examples:
  cpupm freq max 2.4GHz          # Cap every core
  cpupm freq min 1200 --core 3   # Raise the floor of core 3
  cpupm freq set 1800            # Fixed speed (userspace governor)
  cpupm freq limits 800 3000     # Both bounds on every core`,
}

var freqSetCmd = &cobra.Command{
	Use:   "set <freq>",
	Short: "Set the target frequency (userspace governor only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runFreqSet,
}

var freqMinCmd = &cobra.Command{
	Use:   "min <freq>",
	Short: "Set the minimum scaling frequency",
	Args:  cobra.ExactArgs(1),
	RunE:  runFreqBound(true),
}

var freqMaxCmd = &cobra.Command{
	Use:   "max <freq>",
	Short: "Set the maximum scaling frequency",
	Args:  cobra.ExactArgs(1),
	RunE:  runFreqBound(false),
}

var freqLimitsCmd = &cobra.Command{
	Use:   "limits [min max]",
	Short: "Show hardware and scaling limits, or set both bounds",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
		}
		return nil
	},
	RunE: runFreqLimits,
}

var turboCmd = &cobra.Command{
	Use:   "turbo [on|off]",
	Short: "Show or toggle turbo boost",
	Long: `Show or toggle turbo boost. Supported by intel_pstate (no_turbo) and
acpi-cpufreq (boost).`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runTurbo,
}

var eppCmd = &cobra.Command{
	Use:   "epp [preference]",
	Short: "Show or set the energy performance preference",
	Long: `Show or set the energy performance preference (intel_pstate only), e.g.
performance, balance_performance, balance_power or power.

--bias sets the energy/performance bias (0 = performance, 15 = power saving).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEPP,
}

var coreCmd = &cobra.Command{
	Use:   "core",
	Short: "Bring cores online or offline",
}

var coreOnlineCmd = &cobra.Command{
	Use:   "online <core>",
	Short: "Bring a core online",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoreOnline(true),
}

var coreOfflineCmd = &cobra.Command{
	Use:   "offline <core>",
	Short: "Take a core offline (core 0 cannot be taken offline)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoreOnline(false),
}

func init() {
	governorCmd.Flags().IntVarP(&governorCore, "core", "c", allCores, "apply to one core only")

	freqCmd.PersistentFlags().IntVarP(&freqCore, "core", "c", allCores, "apply to one core only")
	freqCmd.AddCommand(freqSetCmd)
	freqCmd.AddCommand(freqMinCmd)
	freqCmd.AddCommand(freqMaxCmd)
	freqCmd.AddCommand(freqLimitsCmd)

	eppCmd.Flags().IntVar(&eppBias, "bias", -1, "energy/performance bias (0-15)")

	coreCmd.AddCommand(coreOnlineCmd)
	coreCmd.AddCommand(coreOfflineCmd)

	rootCmd.AddCommand(governorCmd)
	rootCmd.AddCommand(freqCmd)
	rootCmd.AddCommand(turboCmd)
	rootCmd.AddCommand(eppCmd)
	rootCmd.AddCommand(coreCmd)
}

// parseMHz accepts plain MHz or an SI frequency such as 2.4GHz.
func parseMHz(s string) (uint, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint(v), nil
	}

	v, unit, err := humanize.ParseSI(s)
	if err != nil || !strings.EqualFold(unit, "hz") {
		return 0, fmt.Errorf("invalid frequency %q (want MHz or e.g. 2.4GHz)", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid frequency %q: negative", s)
	}
	return uint(math.Round(v / 1e6)), nil
}

// parseOnOff accepts the usual spellings of a boolean switch.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "enable", "enabled", "yes":
		return true, nil
	case "off", "false", "0", "disable", "disabled", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q (want on or off)", s)
}

// parseCore parses a core index argument.
func parseCore(s string) (int, error) {
	core, err := strconv.Atoi(s)
	if err != nil || core < 0 {
		return 0, fmt.Errorf("invalid core %q", s)
	}
	return core, nil
}

// eachCore runs fn on core, or on every core when core is allCores.
func eachCore(m *cpu.Manager, core int, fn func(int) error) error {
	if core != allCores {
		return fn(core)
	}
	for c := 0; c < m.CoreCount(); c++ {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func coreLabel(core int) string {
	if core == allCores {
		return "all cores"
	}
	return fmt.Sprintf("core %d", core)
}

// runGovernor shows or sets the governor.
func runGovernor(cmd *cobra.Command, args []string) error {
	m, err := newManager(appConfig)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		govs, err := m.Governors()
		if err != nil {
			return err
		}
		available, err := m.AvailableGovernors(0)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for core, g := range govs {
			fmt.Fprintf(w, "core %d\t%s\n", core, g)
		}
		fmt.Fprintf(w, "available\t%s\n", strings.Join(available, " "))
		return w.Flush()
	}

	if governorCore == allCores {
		err = m.SetGovernorAll(args[0])
	} else {
		err = m.SetGovernor(governorCore, args[0])
	}
	if err != nil {
		return err
	}
	printInfo("Governor %s set on %s", args[0], coreLabel(governorCore))
	return nil
}

// runFreqSet writes scaling_setspeed.
func runFreqSet(cmd *cobra.Command, args []string) error {
	mhz, err := parseMHz(args[0])
	if err != nil {
		return err
	}
	m, err := newManager(appConfig)
	if err != nil {
		return err
	}

	if freqCore == allCores {
		err = m.SetFrequencyAll(mhz)
	} else {
		err = m.SetFrequency(freqCore, mhz)
	}
	if err != nil {
		return err
	}
	printInfo("Frequency %s set on %s", output.FormatMHz(mhz), coreLabel(freqCore))
	return nil
}

// runFreqBound returns the handler for freq min or freq max.
func runFreqBound(isMin bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		mhz, err := parseMHz(args[0])
		if err != nil {
			return err
		}
		m, err := newManager(appConfig)
		if err != nil {
			return err
		}

		set, bound := m.SetScalingMaxFreq, "Maximum"
		if isMin {
			set, bound = m.SetScalingMinFreq, "Minimum"
		}
		if err := eachCore(m, freqCore, func(core int) error { return set(core, mhz) }); err != nil {
			return err
		}
		printInfo("%s frequency %s set on %s", bound, output.FormatMHz(mhz), coreLabel(freqCore))
		return nil
	}
}

// runFreqLimits shows every core's limits, or sets both bounds.
func runFreqLimits(cmd *cobra.Command, args []string) error {
	m, err := newManager(appConfig)
	if err != nil {
		return err
	}

	if len(args) == 2 {
		minMHz, err := parseMHz(args[0])
		if err != nil {
			return err
		}
		maxMHz, err := parseMHz(args[1])
		if err != nil {
			return err
		}
		if freqCore == allCores {
			err = m.SetScalingLimitsAll(minMHz, maxMHz)
		} else if err = m.SetScalingMinFreq(freqCore, minMHz); err == nil {
			err = m.SetScalingMaxFreq(freqCore, maxMHz)
		}
		if err != nil {
			return err
		}
		printInfo("Limits %s - %s set on %s", output.FormatMHz(minMHz), output.FormatMHz(maxMHz), coreLabel(freqCore))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CORE\tHW_MIN\tHW_MAX\tMIN\tMAX")
	err = eachCore(m, freqCore, func(core int) error {
		var vals [4]uint
		for i, read := range []func(int) (uint, error){m.HardwareMinFreq, m.HardwareMaxFreq, m.ScalingMinFreq, m.ScalingMaxFreq} {
			if vals[i], err = read(core); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n", core, vals[0], vals[1], vals[2], vals[3])
		return nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

// runTurbo shows or toggles turbo boost.
func runTurbo(cmd *cobra.Command, args []string) error {
	m, err := newManager(appConfig)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		on, err := m.TurboEnabled()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "turbo: %s\n", onOffWord(on))
		return nil
	}

	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	if err := m.SetTurbo(on); err != nil {
		return err
	}
	printInfo("Turbo %s", onOffWord(on))
	return nil
}

func onOffWord(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// runEPP shows or sets the energy hints.
func runEPP(cmd *cobra.Command, args []string) error {
	if eppBias > cpu.MaxEPB {
		return fmt.Errorf("invalid bias %d (want 0-%d)", eppBias, cpu.MaxEPB)
	}
	m, err := newManager(appConfig)
	if err != nil {
		return err
	}

	if len(args) == 0 && eppBias < 0 {
		epp, err := m.EPP(0)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "epp: %s\n", epp)
		if bias, err := m.EPB(0); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "epb: %d\n", bias)
		} else if !errors.Is(err, cpu.ErrNotSupported) {
			printVerbose("epb unreadable: %v", err)
		}
		return nil
	}

	if len(args) == 1 {
		if err := m.SetEPP(args[0]); err != nil {
			return err
		}
		printInfo("Energy performance preference set to %s", args[0])
	}
	if eppBias >= 0 {
		if err := m.SetEPB(uint8(eppBias)); err != nil {
			return err
		}
		printInfo("Energy performance bias set to %d", eppBias)
	}
	return nil
}

// runCoreOnline returns the handler for core online or core offline.
func runCoreOnline(online bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		core, err := parseCore(args[0])
		if err != nil {
			return err
		}
		m, err := newManager(appConfig)
		if err != nil {
			return err
		}
		if err := m.SetCoreOnline(core, online); err != nil {
			return err
		}
		state := "offline"
		if online {
			state = "online"
		}
		printInfo("Core %d is %s", core, state)
		return nil
	}
}
