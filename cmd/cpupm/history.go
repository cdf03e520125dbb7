package main

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View and undo profile applications",
	Long: `View the journal of profile applications and restores.

Each entry stores the CPU state from just before the change, so
'history restore <id>' puts the system back the way it was. IDs may be
shortened to any unique prefix.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent entries",
	Args:    cobra.NoArgs,
	RunE:    runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of one entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore the state captured before an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryRestore,
}

var errHistoryDisabled = errors.New("history is disabled (history.enabled is false)")

var historyLimit int

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRestoreCmd)
	rootCmd.AddCommand(historyCmd)
}

// openLocalHistory opens the journal, failing when it is disabled.
func openLocalHistory() (*history.Store, error) {
	store, err := openHistory(appConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if store == nil {
		return nil, errHistoryDisabled
	}
	return store, nil
}

// runHistory lists recent entries.
func runHistory(cmd *cobra.Command, args []string) error {
	entries, source, err := listHistory(cmd, historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'cpupm profile apply <name>' to record one.")
		return nil
	}
	return render(cmd, &output.Report{Source: source, History: entries})
}

func listHistory(cmd *cobra.Command, limit int) ([]*history.Entry, string, error) {
	c, err := connectDaemon(appConfig)
	if err != nil {
		return nil, "", err
	}
	if c != nil {
		defer c.Close()
		ctx, cancel := rpcContext(cmd)
		defer cancel()
		entries, err := c.History(ctx, limit)
		return entries, "daemon", err
	}

	store, err := openLocalHistory()
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.List(limit)
	return entries, "local", err
}

// findEntry resolves id (or a unique prefix) among entries.
func findEntry(entries []*history.Entry, id string) (*history.Entry, error) {
	var match *history.Entry
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
		if id != "" && strings.HasPrefix(e.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("%w: %q", history.ErrAmbiguous, id)
			}
			match = e
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", history.ErrNotFound, id)
	}
	return match, nil
}

// runHistoryShow prints one entry with its snapshot.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	c, err := connectDaemon(appConfig)
	if err != nil {
		return err
	}

	var entry *history.Entry
	source := "local"
	if c != nil {
		defer c.Close()
		ctx, cancel := rpcContext(cmd)
		defer cancel()

		entries, err := c.History(ctx, math.MaxInt32)
		if err != nil {
			return err
		}
		if entry, err = findEntry(entries, args[0]); err != nil {
			return err
		}
		source = "daemon"
	} else {
		store, err := openLocalHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if entry, err = store.Get(args[0]); err != nil {
			return err
		}
	}

	return render(cmd, &output.Report{Source: source, History: []*history.Entry{entry}})
}

// runHistoryRestore restores the snapshot stored on an entry.
func runHistoryRestore(cmd *cobra.Command, args []string) error {
	c, err := connectDaemon(appConfig)
	if err != nil {
		return err
	}

	var restored *history.Entry
	if c != nil {
		defer c.Close()
		ctx, cancel := rpcContext(cmd)
		defer cancel()
		restored, err = c.Restore(ctx, args[0])
	} else {
		restored, err = restoreLocal(args[0])
	}
	if err != nil {
		return err
	}

	printInfo("Restored state from before entry %s", history.ShortID(restored.RestoredFrom))
	return nil
}

func restoreLocal(id string) (*history.Entry, error) {
	store, err := openLocalHistory()
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	target, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	m, err := newManager(appConfig)
	if err != nil {
		return nil, err
	}
	return history.RestoreEntry(m, store, target, cliSource)
}
