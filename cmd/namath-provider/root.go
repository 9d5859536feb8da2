// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. A nil deps uses the defaults.
func NewRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()
	cfg := &config{}
	var configFile string

	cmd := &cobra.Command{
		Use:   "namath-provider",
		Short: "Namath example provider",
		Long: `namath-provider hosts the example Namath provider plugin: it loads the
plugin into an in-process host with a Namath dashboard, sends carts through the
provider, and reports the responding user's decisions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(cmd.Flags(), configFile, deps)
			if err != nil {
				return err
			}
			*cfg = *loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/namath-provider/config.yaml)")
	registerConfigFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd(cfg, deps))
	cmd.AddCommand(NewSendCmd(cfg, deps))
	cmd.AddCommand(NewTestCmd(cfg, deps))
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewMigrateCmd(cfg, deps))

	return cmd
}
