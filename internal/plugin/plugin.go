// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package plugin is the entry point the host registry loads: it builds the
// cart channel, publishes it as myMessageAPI, and offers the provider
// factory to Namath once Namath is available.
package plugin

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/host"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
	"github.com/jancy-plugins/namath-provider/internal/namath"
	"github.com/jancy-plugins/namath-provider/internal/provider"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

// MessageAPIName is the interface name the cart channel is published under.
const MessageAPIName = "myMessageAPI"

// Plugin wires the example provider into a host.
type Plugin struct {
	manifest *Manifest
	cfg      config

	mu      sync.Mutex
	channel *messaging.Channel
	factory *provider.Factory
	cancel  context.CancelFunc
	done    chan struct{}
	ready   chan struct{}
	logger  *slog.Logger
}

var _ host.Plugin = (*Plugin)(nil)

type config struct {
	store           cart.Store
	source          messaging.DecisionSource
	metrics         *messaging.Metrics
	signals         messaging.SignalRecorder
	decisionTimeout time.Duration
	backoff         func() retry.Backoff
	closers         []func()
}

// Option configures a Plugin.
type Option func(*config)

// WithStore replaces the in-memory cart store.
func WithStore(s cart.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithDecisionSource replaces the auto-approver.
func WithDecisionSource(s messaging.DecisionSource) Option {
	return func(c *config) {
		c.source = s
	}
}

// WithMetrics records channel metrics.
func WithMetrics(m *messaging.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithSignalRecorder receives bump, expire, and test signals.
func WithSignalRecorder(r messaging.SignalRecorder) Option {
	return func(c *config) {
		c.signals = r
	}
}

// WithDecisionTimeout bounds each review.
func WithDecisionTimeout(d time.Duration) Option {
	return func(c *config) {
		c.decisionTimeout = d
	}
}

// WithNamathBackoff sets the polling schedule used while waiting for Namath.
// newBackoff is called once per Init.
func WithNamathBackoff(newBackoff func() retry.Backoff) Option {
	return func(c *config) {
		c.backoff = newBackoff
	}
}

// WithCloser runs fn when the plugin closes, after the channel is closed.
func WithCloser(fn func()) Option {
	return func(c *config) {
		c.closers = append(c.closers, fn)
	}
}

// New creates the plugin from the embedded manifest.
func New(opts ...Option) (*Plugin, error) {
	m, err := LoadManifest()
	if err != nil {
		return nil, err
	}
	cfg := config{
		backoff: func() retry.Backoff { return retry.NewConstant(host.DefaultPollInterval) },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Plugin{manifest: m, cfg: cfg, ready: make(chan struct{})}, nil
}

// Manifest returns the parsed manifest.
func (p *Plugin) Manifest() *Manifest { return p.manifest }

// Props implements host.Plugin.
func (p *Plugin) Props() host.Props { return p.manifest.Props() }

// Init implements host.Plugin. A disabled plugin registers nothing.
func (p *Plugin) Init(ctx context.Context, api host.API, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = api.Logger()
	if !enabled {
		p.logger.InfoContext(ctx, "plugin disabled, not registering")
		return nil
	}
	if p.channel != nil {
		return oops.Code("PLUGIN_ALREADY_INITIALIZED").Errorf("plugin initialized twice")
	}

	store := p.cfg.store
	if store == nil {
		store = cart.NewMemoryStore(cart.WithStoreLogger(p.logger))
	}
	source := p.cfg.source
	if source == nil {
		source = messaging.AutoApprover{}
	}

	chOpts := []messaging.Option{messaging.WithLogger(p.logger)}
	if p.cfg.metrics != nil {
		chOpts = append(chOpts, messaging.WithMetrics(p.cfg.metrics))
	}
	if p.cfg.signals != nil {
		chOpts = append(chOpts, messaging.WithSignalRecorder(p.cfg.signals))
	}
	if p.cfg.decisionTimeout > 0 {
		chOpts = append(chOpts, messaging.WithDecisionTimeout(p.cfg.decisionTimeout))
	}
	ch, err := messaging.New(store, source, chOpts...)
	if err != nil {
		return err
	}

	factory, err := provider.NewFactory(api, ch)
	if err != nil {
		_ = ch.Close(ctx)
		return err
	}

	if err := api.RegisterInterface(MessageAPIName, ch); err != nil {
		_ = ch.Close(ctx)
		return err
	}

	waitCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.channel, p.factory, p.cancel = ch, factory, cancel
	p.done = make(chan struct{})
	select {
	case <-p.ready:
		// Re-initialized after a previous run became ready.
		p.ready = make(chan struct{})
	default:
	}
	go p.offerFactory(waitCtx, api, factory, p.cfg.backoff(), p.done, p.ready)
	return nil
}

// offerFactory waits for Namath and adds the factory to it.
func (p *Plugin) offerFactory(ctx context.Context, api host.API, f *provider.Factory, backoff retry.Backoff, done, ready chan struct{}) {
	defer close(done)

	v, err := api.WaitForInterface(ctx, namath.InterfaceName, backoff)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			errutil.LogWarn(ctx, p.logger, "gave up waiting for namath", err)
		}
		return
	}
	n, ok := v.(provider.NamathAPI)
	if !ok {
		errutil.LogWarn(ctx, p.logger, "namath interface has unexpected type",
			oops.Code("NAMATH_API_INVALID").With("interface", namath.InterfaceName).Errorf("unexpected type %T", v))
		return
	}
	if err := n.AddFactory(f); err != nil {
		errutil.LogWarn(ctx, p.logger, "failed to add provider factory", err)
		return
	}
	p.logger.InfoContext(ctx, "provider factory added to namath", "factory_id", f.ID())
	close(ready)
}

// Ready is closed once the factory has been added to Namath.
func (p *Plugin) Ready() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Channel returns the cart channel, or nil before Init.
func (p *Plugin) Channel() *messaging.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

// Factory returns the provider factory, or nil before Init.
func (p *Plugin) Factory() *provider.Factory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.factory
}

// Close implements host.Plugin. It stops waiting for Namath, releases
// outstanding provider callbacks, and closes the channel.
func (p *Plugin) Close(ctx context.Context) error {
	p.mu.Lock()
	ch, factory, cancel, done := p.channel, p.factory, p.cancel, p.done
	p.channel, p.factory, p.cancel = nil, nil, nil
	p.mu.Unlock()

	if ch == nil {
		return nil
	}
	cancel()
	<-done
	factory.Close()
	err := ch.Close(ctx)
	for _, fn := range p.cfg.closers {
		fn()
	}
	return err
}
