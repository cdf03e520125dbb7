package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/cpupm/pkg/client"
	"github.com/jamesainslie/cpupm/pkg/cpupm/config"
	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
	"github.com/jamesainslie/cpupm/pkg/cpupm/output"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
)

// rpcTimeout bounds every call to cpupmd.
const rpcTimeout = 10 * time.Second

var (
	// appConfig is decoded once per invocation by initializeLogging.
	appConfig *config.Config
	// configErr holds a config file read failure from initConfig.
	configErr error
)

// initializeLogging decodes the configuration and sets up logging before
// any command runs.
func initializeLogging(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return fmt.Errorf("reading config: %w", configErr)
	}

	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return err
	}
	appConfig = cfg

	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		return err
	}
	logCfg.ConsoleLevel = consoleLevel(getVerbose(), getQuiet())

	// The log file may be unwritable (e.g. owned by root); commands still work.
	if err := logging.Init(logCfg); err != nil {
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

// consoleLevel maps the verbosity flags to a stderr log level. Quiet wins.
func consoleLevel(verbose, quiet bool) string {
	switch {
	case quiet:
		return ""
	case verbose:
		return "debug"
	default:
		return "warn"
	}
}

// newManager opens the cpufreq tree named by the configuration.
func newManager(cfg *config.Config) (*cpu.Manager, error) {
	m, err := cpu.New(
		cpu.WithSysRoot(cfg.SysfsRoot),
		cpu.WithProcRoot(cfg.ProcfsRoot),
	)
	if err != nil {
		return nil, err
	}
	printVerbose("driver %s, %d cores, writable=%t", m.Driver(), m.CoreCount(), m.Writable())
	return m, nil
}

// openHistory opens the journal. It returns nil, nil when history is
// disabled.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	return history.Open(cfg.History.Path, retention)
}

// recorderFor converts store to a Recorder without wrapping a nil pointer.
func recorderFor(store *history.Store) history.Recorder {
	if store == nil {
		return nil
	}
	return store
}

// loadRegistry returns the built-in profiles plus those in the profiles
// file.
func loadRegistry(cfg *config.Config) (*profile.Registry, error) {
	user, err := profile.LoadFile(cfg.ProfilesPath)
	if err != nil {
		return nil, err
	}
	return profile.NewRegistry(user...), nil
}

// connectDaemon returns a client when cpupmd should serve the command. With
// --daemon a connection failure is an error; otherwise a running daemon is
// used when reachable and nil means "work locally".
func connectDaemon(cfg *config.Config) (*client.Client, error) {
	required := viper.GetBool("use_daemon")
	if !required && !client.IsDaemonRunning(cfg.Daemon.PIDPath) {
		return nil, nil
	}

	c, err := client.Connect(cfg.Daemon.SocketPath)
	if err != nil {
		if required {
			return nil, err
		}
		printVerbose("daemon unreachable, working locally: %v", err)
		return nil, nil
	}
	printVerbose("using daemon at %s", cfg.Daemon.SocketPath)
	return c, nil
}

// rpcContext returns a context for one daemon call.
func rpcContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, rpcTimeout)
}

// render writes r to the command's output in the selected format.
func render(cmd *cobra.Command, r *output.Report) error {
	f, err := output.Get(getOutput())
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, output.Available())
	}

	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

// turboState reads turbo for display, treating unsupported drivers as
// unknown.
func turboState(m *cpu.Manager) *bool {
	on, err := m.TurboEnabled()
	if err != nil {
		printVerbose("turbo state unavailable: %v", err)
		return nil
	}
	return &on
}
