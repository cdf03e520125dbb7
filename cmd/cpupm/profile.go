package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/cpupm/pkg/cpupm/config"
	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/output"
	"github.com/jamesainslie/cpupm/pkg/cpupm/power"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
)

// cliSource tags history entries written by this command.
const cliSource = "cli"

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage and apply profiles",
	Long: `Profiles bundle a governor, frequency limits, turbo mode and energy hints.

Four profiles are built in: Performance, Balanced, Power Saver and Silent.
Additional profiles live in a TOML file (default: ~/.config/cpupm/profiles.toml)
and are managed with 'profile add' and 'profile remove'. A built-in profile
cannot be replaced.`,
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List available profiles",
	Args:    cobra.NoArgs,
	RunE:    runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

var profileApplyCmd = &cobra.Command{
	Use:   "apply [name]",
	Short: "Apply a profile (default: the configured default profile)",
	Long: `Apply a profile to every core. The governor falls back along the profile's
intent when unavailable, and frequency limits are reset to the hardware range
before the profile's own limits are written.

A failed apply leaves the system partially configured unless
--revert-on-failure is given, in which case the prior state is restored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfileApply,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a user profile",
	Long: `Add a profile to the profiles file, replacing any user profile of the same
name.

Example:
  cpupm profile add Gaming --intent performance --governor performance \
    --turbo always --min 2000 --epp performance`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileAdd,
}

var profileRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a user profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runProfileRemove,
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Apply the profile configured for the current power source",
	Long: `Apply auto.ac_profile on mains power or auto.battery_profile on battery.
When the power source cannot be determined the AC profile is used.`,
	Args: cobra.NoArgs,
	RunE: runAuto,
}

var (
	revertOnFailure bool
	autoDryRun      bool
	newProfile      profileFlags
)

// profileFlags holds the flags of 'profile add'.
type profileFlags struct {
	description string
	intent      string
	governor    string
	turbo       string
	minMHz      string
	maxMHz      string
	epp         string
	epb         int
}

func init() {
	profileApplyCmd.Flags().BoolVar(&revertOnFailure, "revert-on-failure", false, "restore the prior state if apply fails")
	autoCmd.Flags().BoolVar(&revertOnFailure, "revert-on-failure", false, "restore the prior state if apply fails")
	autoCmd.Flags().BoolVarP(&autoDryRun, "dry-run", "d", false, "print the profile that would be applied")

	f := profileAddCmd.Flags()
	f.StringVar(&newProfile.description, "description", "", "free-form description")
	f.StringVar(&newProfile.intent, "intent", "powersave", "governor fallback ranking (performance, balanced, powersave)")
	f.StringVar(&newProfile.governor, "governor", "", "requested governor (default: first choice for the intent)")
	f.StringVar(&newProfile.turbo, "turbo", "auto", "turbo mode (always, auto, never)")
	f.StringVar(&newProfile.minMHz, "min", "", "minimum frequency (MHz or e.g. 1.2GHz)")
	f.StringVar(&newProfile.maxMHz, "max", "", "maximum frequency (MHz or e.g. 3GHz)")
	f.StringVar(&newProfile.epp, "epp", "", "energy performance preference")
	f.IntVar(&newProfile.epb, "epb", -1, "energy/performance bias (0-15)")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileApplyCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(autoCmd)
}

// build turns the flags into a validated profile.
func (f profileFlags) build(name string) (profile.Profile, error) {
	p := profile.Profile{
		Name:        name,
		Description: f.description,
		Governor:    f.governor,
		EPP:         f.epp,
	}
	if err := p.Intent.UnmarshalText([]byte(f.intent)); err != nil {
		return p, err
	}
	if p.Governor == "" {
		p.Governor = profile.FallbackGovernors(p.Intent)[0]
	}
	if err := p.Turbo.UnmarshalText([]byte(f.turbo)); err != nil {
		return p, err
	}
	if f.minMHz != "" {
		mhz, err := parseMHz(f.minMHz)
		if err != nil {
			return p, err
		}
		p.MinFreqMHz = profile.MHz(mhz)
	}
	if f.maxMHz != "" {
		mhz, err := parseMHz(f.maxMHz)
		if err != nil {
			return p, err
		}
		p.MaxFreqMHz = profile.MHz(mhz)
	}
	if f.epb >= 0 {
		if f.epb > cpu.MaxEPB {
			return p, fmt.Errorf("%w: epb %d out of range 0-%d", profile.ErrInvalidProfile, f.epb, cpu.MaxEPB)
		}
		p.EPB = profile.Bias(uint8(f.epb))
	}
	return p, p.Validate()
}

// isBuiltin reports whether name belongs to a built-in profile.
func isBuiltin(name string) bool {
	for _, p := range profile.Builtins() {
		if p.Name == name {
			return true
		}
	}
	return false
}

// listProfiles returns the daemon's profiles when it is running, otherwise
// the local registry.
func listProfiles(cmd *cobra.Command) ([]profile.Profile, string, error) {
	c, err := connectDaemon(appConfig)
	if err != nil {
		return nil, "", err
	}
	if c != nil {
		defer c.Close()
		ctx, cancel := rpcContext(cmd)
		defer cancel()
		profiles, err := c.Profiles(ctx)
		return profiles, "daemon", err
	}

	reg, err := loadRegistry(appConfig)
	if err != nil {
		return nil, "", err
	}
	return reg.List(), "local", nil
}

// runProfileList prints every profile.
func runProfileList(cmd *cobra.Command, args []string) error {
	profiles, source, err := listProfiles(cmd)
	if err != nil {
		return err
	}
	return render(cmd, &output.Report{Source: source, Profiles: profiles})
}

// runProfileShow prints one profile.
func runProfileShow(cmd *cobra.Command, args []string) error {
	profiles, source, err := listProfiles(cmd)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p.Name == args[0] {
			return render(cmd, &output.Report{Source: source, Profiles: []profile.Profile{p}})
		}
	}
	return fmt.Errorf("unknown profile %q (see 'cpupm profile list')", args[0])
}

// runProfileApply applies the named or default profile.
func runProfileApply(cmd *cobra.Command, args []string) error {
	name := appConfig.DefaultProfile
	if len(args) == 1 {
		name = args[0]
	}
	return applyProfile(cmd, name, revertOnFailure)
}

// applyProfile applies name through the daemon when it is running,
// otherwise directly, journalling the outcome.
func applyProfile(cmd *cobra.Command, name string, revert bool) error {
	c, err := connectDaemon(appConfig)
	if err != nil {
		return err
	}

	var entry *history.Entry
	if c != nil {
		defer c.Close()
		ctx, cancel := rpcContext(cmd)
		defer cancel()
		entry, err = c.Apply(ctx, name, revert)
	} else {
		entry, err = applyLocal(appConfig, name, revert)
	}

	if err != nil {
		if entry != nil && entry.Status == history.StatusReverted {
			printInfo("Apply failed; previous state restored")
		}
		return err
	}

	printInfo("Applied profile %s", name)
	if entry != nil && entry.ID != "" {
		printVerbose("history entry %s", history.ShortID(entry.ID))
	}
	return nil
}

// applyLocal applies name against sysfs. History problems never block the
// apply itself.
func applyLocal(cfg *config.Config, name string, revert bool) (*history.Entry, error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	p, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (see 'cpupm profile list')", name)
	}

	m, err := newManager(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openHistory(cfg)
	if err != nil {
		printVerbose("history unavailable: %v", err)
		store = nil
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	return history.ApplyProfile(m, recorderFor(store), p, history.ApplyOptions{
		RevertOnFailure: revert,
		Source:          cliSource,
	})
}

// runProfileAdd writes a user profile.
func runProfileAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	if isBuiltin(name) {
		return fmt.Errorf("%q is a built-in profile and cannot be replaced", name)
	}
	p, err := newProfile.build(name)
	if err != nil {
		return err
	}

	path := appConfig.ProfilesPath
	existing, err := profile.LoadFile(path)
	if err != nil {
		return err
	}

	replaced := false
	for i := range existing {
		if existing[i].Name == name {
			existing[i] = p
			replaced = true
		}
	}
	if !replaced {
		existing = append(existing, p)
	}

	if err := profile.SaveFile(path, existing); err != nil {
		return err
	}
	if replaced {
		printInfo("Replaced profile %s in %s", name, path)
	} else {
		printInfo("Added profile %s to %s", name, path)
	}
	return nil
}

// runProfileRemove deletes a user profile.
func runProfileRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	if isBuiltin(name) {
		return fmt.Errorf("%q is a built-in profile and cannot be removed", name)
	}

	path := appConfig.ProfilesPath
	existing, err := profile.LoadFile(path)
	if err != nil {
		return err
	}

	kept := existing[:0]
	for _, p := range existing {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(existing) {
		return fmt.Errorf("no user profile named %q in %s", name, path)
	}

	if err := profile.SaveFile(path, kept); err != nil {
		return err
	}
	printInfo("Removed profile %s from %s", name, path)
	return nil
}

// autoProfile picks the configured profile for the power source. An
// unknown source counts as AC.
func autoProfile(cfg config.AutoConfig, onAC bool, sourceErr error) string {
	if sourceErr != nil || onAC {
		return cfg.ACProfile
	}
	return cfg.BatteryProfile
}

// runAuto applies the profile for the current power source.
func runAuto(cmd *cobra.Command, args []string) error {
	onAC, err := power.OnAC(appConfig.SysfsRoot)
	if err != nil {
		if !errors.Is(err, power.ErrUnknown) {
			return err
		}
		printVerbose("power source unknown, assuming AC")
	}
	name := autoProfile(appConfig.Auto, onAC, err)

	source := "battery"
	if onAC || err != nil {
		source = "AC"
	}
	if autoDryRun {
		printInfo("On %s power: would apply %s", source, name)
		return nil
	}
	printVerbose("on %s power, applying %s", source, name)
	return applyProfile(cmd, name, revertOnFailure)
}
