// Command cpupmd serves CPU state and applies profiles on behalf of
// unprivileged cpupm clients over a Unix socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/cpupm/pkg/cpupm/config"
	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
	"github.com/jamesainslie/cpupm/pkg/daemon"
	"github.com/jamesainslie/cpupm/pkg/daemon/broadcaster"
	"github.com/jamesainslie/cpupm/pkg/daemon/watcher"
)

// Set by ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfgFile      string
	startProfile string
	consoleLevel string
)

var rootCmd = &cobra.Command{
	Use:   "cpupmd",
	Short: "cpupm daemon",
	Long: `cpupmd owns the cpufreq interface on behalf of cpupm clients. It listens on
daemon.socket_path, journals every profile it applies and reloads the user
profiles file when it changes.

Run it as root (e.g. from a systemd unit) so clients can apply profiles
without sudo.`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("cpupmd %s (commit %s, built %s)\n", version, commit, date))
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/cpupm/config.yaml)")
	rootCmd.Flags().StringVar(&startProfile, "profile", "", "profile to apply at startup")
	rootCmd.Flags().StringVar(&consoleLevel, "log-level", "info", "stderr log level (empty disables)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cpupmd: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration the same way cpupm does.
func loadConfig() (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		config.AddConfigPaths(v)
	}
	config.SetEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return config.Decode(v)
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		return err
	}
	logCfg.ConsoleLevel = consoleLevel
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer func() { _ = logging.Close() }()
	log := logging.Get("daemon")

	socketPath := cfg.Daemon.SocketPath
	pidPath := cfg.Daemon.PIDPath
	statusPath := daemon.StatusPath(socketPath)

	historyDir := ""
	if cfg.History.Enabled {
		historyDir = cfg.History.Path
	}
	if err := daemon.RecoverFromStaleDaemon(pidPath, socketPath, historyDir); err != nil {
		return err
	}

	// Past this point failures are reported to 'cpupm daemon start' through
	// the status file.
	fail := func(err error) error {
		log.Error("startup failed", "error", err)
		if werr := daemon.WriteStatusError(statusPath, err); werr != nil {
			log.Warn("could not write status file", "error", werr)
		}
		return err
	}

	m, err := cpu.New(cpu.WithSysRoot(cfg.SysfsRoot), cpu.WithProcRoot(cfg.ProcfsRoot))
	if err != nil {
		return fail(err)
	}
	if !m.Writable() {
		log.Warn("not running as root; apply requests will be denied")
	}
	log.Info("cpufreq detected", "driver", m.Driver(), "cores", m.CoreCount())

	store := openHistory(cfg, log)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	user, err := profile.LoadFile(cfg.ProfilesPath)
	if err != nil {
		log.Warn("ignoring invalid profiles file", "path", cfg.ProfilesPath, "error", err)
		user = nil
	}
	events := broadcaster.New()
	svc := daemon.NewServiceWithBroadcaster(m, profile.NewRegistry(user...), store, events)

	mode, err := cfg.SocketFileMode()
	if err != nil {
		return fail(err)
	}
	srv, err := daemon.NewServer(daemon.Config{SocketPath: socketPath, SocketMode: mode}, svc)
	if err != nil {
		return fail(fmt.Errorf("creating server: %w", err))
	}

	if err := daemon.WritePIDFile(pidPath); err != nil {
		_ = srv.Close()
		return fail(fmt.Errorf("writing PID file: %w", err))
	}
	defer func() {
		if err := daemon.RemovePIDFile(pidPath); err != nil {
			log.Warn("failed to remove PID file", "error", err)
		}
		_ = daemon.RemoveStatus(statusPath)
	}()

	if startProfile != "" {
		if _, err := svc.Apply(startProfile, true); err != nil {
			log.Error("startup profile not applied", "profile", startProfile, "error", err)
		}
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if w, err := watcher.New(cfg.ProfilesPath, watcher.DefaultDebounce); err != nil {
		log.Warn("profiles file will not be reloaded", "path", cfg.ProfilesPath, "error", err)
	} else {
		defer func() { _ = w.Close() }()
		go w.Run(watchCtx, func(path string) {
			_ = svc.ReloadProfiles(path)
		})
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	if err := daemon.WriteStatusReady(statusPath); err != nil {
		log.Warn("could not write status file", "error", err)
	}
	log.Info("cpupmd started", "socket", socketPath, "pid", os.Getpid())

	select {
	case <-ctx.Done():
		log.Info("signal received, shutting down")
	case <-svc.Done():
		log.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			log.Error("server stopped", "error", err)
			return err
		}
	}

	// Ends open WatchEvents streams so the graceful stop can finish.
	events.Close()
	if err := srv.Close(); err != nil {
		log.Warn("error during shutdown", "error", err)
	}
	return nil
}

// openHistory opens the journal. A failure disables history rather than
// stopping the daemon.
func openHistory(cfg *config.Config, log *logging.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	store, err := history.Open(cfg.History.Path, retention)
	if err != nil {
		log.Warn("history disabled", "path", cfg.History.Path, "error", err)
		return nil
	}
	return store
}
