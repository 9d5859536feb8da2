// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"
)

// NewTestCmd creates the test subcommand.
func NewTestCmd(cfg *config, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test signal through the message API",
		Long: `Load the provider and send a test signal through its message API, checking
that the channel and any configured cart store are reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			env, err := newEnvironment(ctx, cfg, deps, envOptions{logWriter: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := env.close(context.WithoutCancel(ctx)); err == nil {
					err = closeErr
				}
			}()

			if err := env.plugin.Channel().SendTest(ctx); err != nil {
				return err
			}
			cmd.Printf("test signal sent (%d providers)\n", len(env.dashboard.Providers()))
			return nil
		},
	}
}
