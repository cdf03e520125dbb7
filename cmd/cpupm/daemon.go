package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/cpupm/pkg/client"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/daemon"
	"github.com/jamesainslie/cpupm/pkg/daemon/broadcaster"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the cpupmd daemon",
	Long: `Manage cpupmd, the root daemon that serves CPU state and applies profiles
for unprivileged clients over a Unix socket.

The socket is created with daemon.socket_mode (default 0660), so members of
its group can apply profiles without sudo.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start cpupmd in the background",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop cpupmd gracefully",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop and start cpupmd",
	Args:  cobra.NoArgs,
	RunE:  runDaemonRestart,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream daemon events until interrupted",
	Long: `Print profile applications, restores and profile reloads as cpupmd reports
them. With -o json each event is written as one JSON object per line.

Event types: profile_applied, apply_failed, state_restored,
profiles_reloaded, reload_failed.`,
	Args: cobra.NoArgs,
	RunE: runDaemonEvents,
}

var (
	daemonBinary string
	eventTypes   []string
)

func init() {
	daemonStartCmd.Flags().StringVar(&daemonBinary, "binary", "", "path to cpupmd (default: next to cpupm, then PATH)")
	daemonRestartCmd.Flags().StringVar(&daemonBinary, "binary", "", "path to cpupmd (default: next to cpupm, then PATH)")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
	daemonEventsCmd.Flags().StringSliceVarP(&eventTypes, "type", "t", nil, "only show these event types")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonEventsCmd)
	rootCmd.AddCommand(daemonCmd)
}

// daemonPaths builds the client paths from the loaded configuration.
func daemonPaths() client.DaemonPaths {
	paths := client.DaemonPaths{
		Binary: daemonBinary,
		Socket: appConfig.Daemon.SocketPath,
		PID:    appConfig.Daemon.PIDPath,
	}
	if cfgFile != "" {
		paths.Args = []string{"--config", cfgFile}
	}
	return paths
}

func runDaemonStart(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	if client.IsDaemonRunning(paths.PID) {
		printInfo("Daemon already running")
		return nil
	}

	printVerbose("starting daemon (socket %s)...", paths.Socket)
	if err := client.StartDaemon(paths); err != nil {
		printVerbose("start failed: %v", err)
		return err
	}
	printInfo("Daemon started")
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	printVerbose("checking PID file: %s", paths.PID)

	if !client.IsDaemonRunning(paths.PID) {
		return fmt.Errorf("daemon is not running")
	}
	if err := client.StopDaemon(paths); err != nil {
		return err
	}
	printInfo("Daemon stopped")
	return nil
}

func runDaemonRestart(cmd *cobra.Command, args []string) error {
	if client.IsDaemonRunning(daemonPaths().PID) {
		if err := runDaemonStop(cmd, args); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
	}
	if err := runDaemonStart(cmd, args); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	return nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	paths := daemonPaths()

	if !client.IsDaemonRunning(paths.PID) {
		printInfo("Daemon status: not running")
		if st, err := daemon.ReadStatus(daemon.StatusPath(paths.Socket)); err == nil && st.Status == daemon.StatusError {
			printInfo("  Last error: %s", st.Error)
		}
		return nil
	}

	ctx, cancel := rpcContext(cmd)
	defer cancel()

	c, err := client.ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		printInfo("Daemon status: running (but not responding)")
		return nil
	}
	defer c.Close()

	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get daemon status: %w", err)
	}

	pid, _ := daemon.ReadPIDFile(paths.PID)
	active := st.ActiveProfile
	if active == "" {
		active = "(none)"
	}

	printInfo("Daemon status: running")
	printInfo("  PID:            %d", pid)
	printInfo("  Socket:         %s", paths.Socket)
	printInfo("  Uptime:         %s", formatDuration(time.Since(st.StartedAt)))
	printInfo("  Started:        %s", humanize.Time(st.StartedAt))
	printInfo("  Active profile: %s", active)
	printInfo("  Cores:          %d", len(st.Cores))
	return nil
}

func runDaemonEvents(cmd *cobra.Command, _ []string) error {
	paths := daemonPaths()
	if !client.IsDaemonRunning(paths.PID) {
		return fmt.Errorf("daemon is not running")
	}

	c, err := client.Connect(paths.Socket)
	if err != nil {
		return err
	}
	defer c.Close()

	types := make([]broadcaster.EventType, 0, len(eventTypes))
	for _, t := range eventTypes {
		types = append(types, broadcaster.EventType(t))
	}

	ctx := cmd.Context()
	events, err := c.WatchEvents(ctx, types...)
	if err != nil {
		return err
	}
	printVerbose("watching events on %s", paths.Socket)

	w := cmd.OutOrStdout()
	enc := json.NewEncoder(w)
	for e := range events {
		if getOutput() == "json" {
			if err := enc.Encode(e); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(w, formatEvent(e))
	}
	if ctx.Err() == nil {
		return fmt.Errorf("daemon closed the event stream")
	}
	return nil
}

// formatEvent renders one event as a single line.
func formatEvent(e broadcaster.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-17s", e.Time.Local().Format("15:04:05"), e.Type)
	if e.Profile != "" {
		fmt.Fprintf(&b, "  profile=%q", e.Profile)
	}
	if e.EntryID != "" {
		fmt.Fprintf(&b, "  entry=%s", history.ShortID(e.EntryID))
	}
	if e.Message != "" {
		fmt.Fprintf(&b, "  %s", e.Message)
	}
	return strings.TrimRight(b.String(), " ")
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
