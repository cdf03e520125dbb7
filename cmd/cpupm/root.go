package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/cpupm/pkg/cpupm/config"
	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "cpupm",
		Short: "Inspect and tune CPU frequency scaling",
		Long: `cpupm reads and writes the Linux cpufreq interface: governors, frequency
limits, turbo boost and energy hints. Settings can be bundled into profiles
and applied in one step.

Reading works for any user. Changing settings requires root.

Examples:
  cpupm info                      # Processor and driver summary
  cpupm status                    # Per-core frequencies and governors
  cpupm profile apply "Power Saver"
  cpupm freq max 2400             # Cap every core at 2.4 GHz
  cpupm -o json status            # Machine-readable output
  cpupm history                   # Recent profile applications`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initializeLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/cpupm/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format (pretty, plain, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().Bool("daemon", false, "require cpupmd instead of accessing sysfs directly")

	// Bind flags to viper
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("use_daemon", rootCmd.PersistentFlags().Lookup("daemon"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	configErr = nil
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		config.AddConfigPaths(v)
	}
	config.SetEnv(v)

	// A missing file is fine; a broken one is reported by initializeLogging.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = err
		}
	}
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError("%v", err)
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// getOutput returns the selected output format.
func getOutput() string {
	return viper.GetString("output")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
