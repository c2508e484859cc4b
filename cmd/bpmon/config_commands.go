package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/bpmon"
)

// createConfigCommand creates the config subcommand group.
func createConfigCommand(globalFlags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect bpmon configuration",
	}
	cmd.AddCommand(createConfigShowCommand(globalFlags))
	return cmd
}

// createConfigShowCommand prints the effective configuration after defaults
// and validation, with secrets redacted.
func createConfigShowCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show [config.toml]",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("config file required. Use --config=config.toml or provide as argument")
			}
			cfg, err := bpmon.LoadConfig(path)
			if err != nil {
				return err
			}
			redacted := *cfg
			if redacted.Auth.Password != "" {
				redacted.Auth.Password = "***"
			}
			if redacted.Auth.APIKey != "" {
				redacted.Auth.APIKey = "***"
			}
			out, err := json.MarshalIndent(redacted, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}
