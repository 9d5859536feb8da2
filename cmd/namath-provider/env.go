// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/approver"
	"github.com/jancy-plugins/namath-provider/internal/host"
	"github.com/jancy-plugins/namath-provider/internal/logging"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
	"github.com/jancy-plugins/namath-provider/internal/namath"
	"github.com/jancy-plugins/namath-provider/internal/observability"
	"github.com/jancy-plugins/namath-provider/internal/plugin"
	"github.com/jancy-plugins/namath-provider/internal/provider"
	"github.com/jancy-plugins/namath-provider/internal/xdg"
)

const (
	serviceName = "namath-provider"
	hostOwner   = "host"
)

// environment is the in-process host with Namath and the plugin loaded.
type environment struct {
	logger    *slog.Logger
	registry  *host.Registry
	dashboard *namath.Dashboard
	plugin    *plugin.Plugin
	metrics   *observability.Metrics
	statePath string

	mu        sync.Mutex
	listeners []chan<- namath.Response
}

// envOptions carries what differs between commands.
type envOptions struct {
	logWriter io.Writer
	registry  prometheus.Registerer
	metrics   *observability.Metrics
}

// newEnvironment builds the host, registers Namath, loads the plugin and
// waits until the factory has been offered. Saved providers are restored;
// with none saved, one is created from provider_key.
func newEnvironment(ctx context.Context, cfg *config, deps *Deps, opts envOptions) (_ *environment, err error) {
	logger, err := logging.Setup(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Writer:  opts.logWriter,
	})
	if err != nil {
		return nil, err
	}

	var cleanup []func()
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()

	pluginOpts := []plugin.Option{}
	if cfg.DecisionTimeout > 0 {
		pluginOpts = append(pluginOpts, plugin.WithDecisionTimeout(cfg.DecisionTimeout))
	}
	if opts.registry != nil {
		pluginOpts = append(pluginOpts, plugin.WithMetrics(messaging.NewMetrics(opts.registry)))
	}

	if cfg.DatabaseURL != "" {
		st, openErr := deps.StoreOpener(ctx, cfg.DatabaseURL, logger)
		if openErr != nil {
			return nil, openErr
		}
		cleanup = append(cleanup, st.Close)
		pluginOpts = append(pluginOpts,
			plugin.WithStore(st),
			plugin.WithSignalRecorder(st),
			plugin.WithCloser(st.Close))
		logger.InfoContext(ctx, "using postgres cart store")
	}

	source, closeSource, err := decisionSource(cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	if closeSource != nil {
		cleanup = append(cleanup, closeSource)
		pluginOpts = append(pluginOpts, plugin.WithCloser(closeSource))
	}
	pluginOpts = append(pluginOpts, plugin.WithDecisionSource(source))

	env := &environment{
		logger:  logger,
		metrics: opts.metrics,
	}
	env.registry = host.NewRegistry(host.WithRegistryLogger(logger))
	env.dashboard = namath.NewDashboard(
		namath.WithLogger(logging.Component(logger, "namath")),
		namath.WithResponseHook(env.onResponse))
	if err := env.registry.Interfaces().Register(hostOwner, namath.InterfaceName, env.dashboard); err != nil {
		return nil, err
	}

	p, err := plugin.New(pluginOpts...)
	if err != nil {
		return nil, err
	}
	if err := env.registry.Load(ctx, p, true); err != nil {
		return nil, err
	}
	// The plugin owns the store and source from here on.
	cleanup = []func(){func() { _ = env.registry.Close(context.WithoutCancel(ctx)) }}
	env.plugin = p

	select {
	case <-p.Ready():
	case <-ctx.Done():
		return nil, oops.Code("NAMATH_WAIT_ABORTED").Wrap(ctx.Err())
	}
	if env.metrics != nil {
		env.metrics.NamathConnected.Set(1)
	}

	if err := env.setupProviders(ctx, cfg, deps); err != nil {
		return nil, err
	}
	return env, nil
}

// decisionSource picks the approver. The returned closer may be nil.
func decisionSource(cfg *config, deps *Deps, logger *slog.Logger) (messaging.DecisionSource, func(), error) {
	switch {
	case cfg.ApproverPath != "":
		remote, err := deps.ApproverLauncher(cfg.ApproverPath, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using out-of-process approver", "path", cfg.ApproverPath)
		return remote, remote.Close, nil
	case cfg.PriceLimit != "":
		limit, err := approver.ParseLimit(cfg.PriceLimit)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using price limit approver", "limit", limit.StringFixed(2))
		return approver.PriceLimit{Limit: limit, User: cfg.RespondingUser, Logger: logger}, nil, nil
	default:
		return messaging.AutoApprover{User: cfg.RespondingUser}, nil, nil
	}
}

func (env *environment) setupProviders(ctx context.Context, cfg *config, deps *Deps) error {
	path := cfg.StateFile
	if path == "" {
		def, err := deps.ProvidersFileGetter()
		if err != nil {
			return err
		}
		path = def
	}
	env.statePath = path

	restored, err := env.restoreProviders(ctx)
	if err != nil {
		return err
	}
	if restored > 0 || cfg.ProviderKey == "" {
		return nil
	}

	state, err := json.Marshal(provider.State{
		ProviderName: cfg.ProviderName,
		Key:          cfg.ProviderKey,
		InstanceID:   uuid.NewString(),
		Type:         provider.Type,
	})
	if err != nil {
		return oops.Code("PROVIDER_STATE_FAILED").Wrap(err)
	}
	p, err := env.dashboard.CreateProvider(ctx, env.plugin.Factory(), state)
	if err != nil {
		return err
	}
	env.logger.InfoContext(ctx, "provider created from config", "provider", p.Name())
	return nil
}

func (env *environment) restoreProviders(ctx context.Context) (int, error) {
	data, err := os.ReadFile(env.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, oops.Code("PROVIDERS_LOAD_FAILED").With("path", env.statePath).Wrap(err)
	}

	var saved []namath.SavedProvider
	if err := json.Unmarshal(data, &saved); err != nil {
		return 0, oops.Code("PROVIDERS_LOAD_FAILED").With("path", env.statePath).Wrap(err)
	}
	restored, err := env.dashboard.Restore(ctx, saved)
	if err != nil {
		// Partial restores keep the providers that did load.
		env.logger.WarnContext(ctx, "some saved providers could not be restored", "error", err)
	}
	if env.metrics != nil {
		env.metrics.ProvidersRestored.Add(float64(restored))
	}
	env.logger.InfoContext(ctx, "providers restored", "count", restored, "path", env.statePath)
	return restored, nil
}

// saveProviders writes persistable provider state next to other XDG data.
func (env *environment) saveProviders() error {
	states, err := env.dashboard.States()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return oops.Code("PROVIDERS_SAVE_FAILED").Wrap(err)
	}
	if err := xdg.EnsureDir(filepath.Dir(env.statePath)); err != nil {
		return err
	}
	if err := os.WriteFile(env.statePath, data, 0o600); err != nil {
		return oops.Code("PROVIDERS_SAVE_FAILED").With("path", env.statePath).Wrap(err)
	}
	env.logger.Info("providers saved", "count", len(states), "path", env.statePath)
	return nil
}

// subscribe returns a channel receiving every later response. Responses
// are dropped for a subscriber whose buffer is full.
func (env *environment) subscribe(buffer int) <-chan namath.Response {
	ch := make(chan namath.Response, buffer)
	env.mu.Lock()
	env.listeners = append(env.listeners, ch)
	env.mu.Unlock()
	return ch
}

func (env *environment) onResponse(r namath.Response) {
	env.metrics.RecordResponse(r.Approved, r.IsError)

	env.mu.Lock()
	defer env.mu.Unlock()
	for _, ch := range env.listeners {
		select {
		case ch <- r:
		default:
			env.logger.Warn("response subscriber is full, dropping", "cart_id", string(r.CartID))
		}
	}
}

// providerNamed returns the named provider, or the first one for "".
func (env *environment) providerNamed(name string) (namath.Provider, error) {
	providers := env.dashboard.Providers()
	if len(providers) == 0 {
		return nil, oops.Code("NO_PROVIDERS").
			Hint("set provider_key or restore saved providers").
			Errorf("no providers are configured")
	}
	if name == "" {
		return providers[0], nil
	}
	for _, p := range providers {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, oops.Code("PROVIDER_NOT_FOUND").With("provider", name).Errorf("no provider named %q", name)
}

// close unloads the plugin, which closes the channel, store and approver.
func (env *environment) close(ctx context.Context) error {
	return env.registry.Close(ctx)
}
