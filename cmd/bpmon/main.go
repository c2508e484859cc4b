package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}
	root := &cobra.Command{
		Use:   "bpmon",
		Short: "Business-process monitor daemon",
		Long: `bpmon polls a remote business-process-management API on configurable
intervals, tracks the latest known status of each monitored task or process
definition, persists that state, and exposes an HTTP API for monitor CRUD
and task/process actions.

Examples:
  bpmon serve config.toml           # Start the daemon
  bpmon config show --config=config.toml`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file")
	root.AddCommand(
		createServeCommand(flags),
		createConfigCommand(flags),
	)
	return root
}
