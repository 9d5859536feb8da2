// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/namath"
)

type sendOptions struct {
	file     string
	provider string
}

// NewSendCmd creates the send subcommand.
func NewSendCmd(cfg *config, deps *Deps) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one cart and print the decision",
		Long: `Send a single cart JSON object, read from --file or stdin, through one
provider and print the responding user's decision as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd.Context(), cmd, cfg, deps, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "cart JSON file (default: stdin)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider name (default: the first provider)")
	return cmd
}

func runSend(ctx context.Context, cmd *cobra.Command, cfg *config, deps *Deps, opts *sendOptions) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := readInput(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}
	c, err := cartFromJSON(data)
	if err != nil {
		return err
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

	p, err := env.providerNamed(opts.provider)
	if err != nil {
		return err
	}

	responses := env.subscribe(8)
	ok, err := env.dashboard.SendCart(ctx, p, c)
	if err != nil {
		return err
	}
	if !ok {
		return oops.Code("CART_NOT_SENT").With("cart_id", string(c.ID)).Errorf("provider did not send the cart")
	}

	timeout := cfg.DecisionTimeout
	if timeout <= 0 {
		timeout = defaultDecisionTimeout
	}
	resp, err := awaitResponse(ctx, responses, c.ID, timeout)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func awaitResponse(ctx context.Context, responses <-chan namath.Response, id cart.ID, timeout time.Duration) (namath.Response, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case r := <-responses:
			if r.CartID == id {
				return r, nil
			}
		case <-timer.C:
			return namath.Response{}, oops.Code("DECISION_TIMEOUT").
				With("cart_id", string(id)).
				With("timeout", timeout.String()).
				Errorf("no decision within %s", timeout)
		case <-ctx.Done():
			return namath.Response{}, oops.Code("DECISION_WAIT_ABORTED").Wrap(ctx.Err())
		}
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // operator-supplied path
	}
	if err != nil {
		return nil, oops.Code("CART_INPUT_FAILED").With("file", path).Wrap(err)
	}
	return data, nil
}
