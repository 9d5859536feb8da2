// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/namath"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

const (
	shutdownTimeout  = 5 * time.Second
	drainPoll        = 20 * time.Millisecond
	maxCartLineBytes = 1 << 20
)

type runOptions struct {
	stdin bool
}

// NewRunCmd creates the run subcommand.
func NewRunCmd(cfg *config, deps *Deps) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Host the provider until interrupted",
		Long: `Load the provider plugin into an in-process host with a Namath dashboard,
restore saved providers, and serve metrics and health probes. With --stdin,
each input line is a cart JSON object sent through every provider; decisions
are written to stdout as JSON lines and the command exits at end of input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProvider(cmd.Context(), cmd, cfg, deps, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.stdin, "stdin", false, "read carts from stdin, one JSON object per line")
	return cmd
}

func runProvider(ctx context.Context, cmd *cobra.Command, cfg *config, deps *Deps, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	envOpts := envOptions{logWriter: cmd.ErrOrStderr()}
	var ready atomic.Bool
	if cfg.MetricsAddr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.MetricsAddr, ready.Load)
		envOpts.registry = obsServer.Registry()
		envOpts.metrics = obsServer.Metrics()

		obsErrs, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, stop, obsErrs)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				errutil.LogWarn(shutdownCtx, nil, "error stopping observability server", err)
			}
		}()
	}

	env, err := newEnvironment(ctx, cfg, deps, envOpts)
	if err != nil {
		return err
	}
	ready.Store(true)

	responses := env.subscribe(64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printResponses(ctx, cmd.OutOrStdout(), responses)
	}()

	env.logger.InfoContext(ctx, "provider running", "providers", len(env.dashboard.Providers()))

	var runErr error
	if opts.stdin {
		runErr = env.sendLines(ctx, cmd.InOrStdin(), cfg.DecisionTimeout)
	} else {
		<-ctx.Done()
		env.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := env.saveProviders(); err != nil {
		errutil.LogWarn(shutdownCtx, env.logger, "failed to save providers", err)
	}
	closeErr := env.close(shutdownCtx)
	stop()
	<-printed
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// sendLines sends each cart line through every provider and waits for
// their decisions, giving up after timeout.
func (env *environment) sendLines(ctx context.Context, r io.Reader, timeout time.Duration) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCartLineBytes)

	expected := len(env.dashboard.Responses())
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		c, err := cartFromJSON(line)
		if err != nil {
			errutil.LogWarn(ctx, env.logger, "skipping invalid cart line", err)
			continue
		}
		for _, p := range env.dashboard.Providers() {
			ok, err := env.dashboard.SendCart(ctx, p, c)
			if err != nil {
				errutil.LogWarn(ctx, env.logger, "send cart failed", err)
				continue
			}
			if ok {
				expected++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return oops.Code("CART_INPUT_FAILED").Wrap(err)
	}
	env.drain(ctx, expected, timeout)
	return nil
}

// drain waits until Namath has shown expected responses.
func (env *environment) drain(ctx context.Context, expected int, timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultDecisionTimeout
	}
	b := retry.WithMaxDuration(timeout, retry.NewConstant(drainPoll))
	err := retry.Do(ctx, b, func(_ context.Context) error {
		if got := len(env.dashboard.Responses()); got < expected {
			return retry.RetryableError(oops.Code("DECISIONS_PENDING").
				With("expected", expected).
				With("received", got).
				Errorf("%d decisions still pending", expected-got))
		}
		return nil
	})
	if err != nil {
		errutil.LogWarn(ctx, env.logger, "not every cart was decided", err)
	}
}

// cartFromJSON builds a cart from its payload. A "uuid" field is used as the
// cart id; otherwise a new id is generated.
func cartFromJSON(data []byte) (cart.Cart, error) {
	var head struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return cart.Cart{}, oops.Code("CART_PAYLOAD_INVALID").Wrap(err)
	}
	id := cart.ID(head.UUID)
	if id == "" {
		id = cart.NewID()
	}
	c := cart.New(id, json.RawMessage(append([]byte(nil), data...)))
	if err := c.Validate(); err != nil {
		return cart.Cart{}, err
	}
	return c, nil
}

func printResponses(ctx context.Context, w io.Writer, responses <-chan namath.Response) {
	enc := json.NewEncoder(w)
	for {
		select {
		case r := <-responses:
			//nolint:errcheck // stdout write failures are not recoverable here
			enc.Encode(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-responses:
					//nolint:errcheck // stdout write failures are not recoverable here
					enc.Encode(r)
				default:
					return
				}
			}
		}
	}
}

// monitorServerErrors cancels the run when the observability server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			errutil.LogErrorContext(ctx, nil, slog.LevelError, "observability server failed, shutting down", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
