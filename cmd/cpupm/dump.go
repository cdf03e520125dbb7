package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/sysdump"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump every cpufreq attribute for bug reports",
	Long: `Read every file under the cpufreq policy, driver and per-core directories
and print them as "path = value". Unreadable attributes are listed with the
error instead of a value.

With -o json or -o yaml the dump is structured; any other format prints text.`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

var dumpFile string

func init() {
	dumpCmd.Flags().StringVarP(&dumpFile, "file", "f", "", "write the dump to a file instead of stdout")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	base := cpu.BasePath(appConfig.SysfsRoot)
	printVerbose("collecting attributes below %s", base)

	d, err := sysdump.Collect(cmd.Context(), base)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if dumpFile != "" {
		f, err := os.Create(dumpFile)
		if err != nil {
			return fmt.Errorf("failed to create dump file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch getOutput() {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(d)
		if err == nil {
			err = enc.Close()
		}
	default:
		err = d.WriteText(w)
	}
	if err != nil {
		return err
	}

	if dumpFile != "" {
		printInfo("Wrote %d attributes to %s", len(d.Attributes), dumpFile)
	}
	return nil
}
