// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package provider implements the example Namath provider: a factory that
// Namath lists under its '+' button, provider instances that send carts
// through the cart channel, and the dialog used to configure them.
package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/host"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
	"github.com/jancy-plugins/namath-provider/internal/namath"
)

const (
	// DefaultName is used when a provider is created without a name.
	DefaultName = "This example name"
	// Info is shown next to the provider in Namath.
	Info = "Some friendly info about this provider will be displayed in namath"
	// Type identifies this provider kind in saved state.
	Type = 0
)

// State is the saved form of a provider.
type State struct {
	ProviderName string `json:"providerName,omitempty"`
	Key          string `json:"key,omitempty"`
	InstanceID   string `json:"instance_id,omitempty"`
	Type         int    `json:"type"`
}

// ParseState decodes saved state. Empty input is an empty state.
func ParseState(raw json.RawMessage) (State, error) {
	var s State
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, oops.Code("PROVIDER_STATE_INVALID").Wrap(err)
	}
	return s, nil
}

// Provider sends carts with its key and relays decisions to Namath.
type Provider struct {
	factory *Factory
	channel *messaging.Channel
	logger  *slog.Logger

	mu         sync.RWMutex
	name       string
	key        string
	instanceID string
	pending    map[cart.ID]func()
}

var _ namath.Provider = (*Provider)(nil)

func newProvider(f *Factory, s State) *Provider {
	p := &Provider{
		factory:    f,
		channel:    f.channel,
		logger:     f.logger,
		instanceID: s.InstanceID,
		pending:    make(map[cart.ID]func()),
	}
	p.apply(s)
	return p
}

func (p *Provider) apply(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = s.ProviderName
	if p.name == "" {
		p.name = DefaultName
	}
	p.key = s.Key
}

// Name implements namath.Provider.
func (p *Provider) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// Info implements namath.Provider.
func (p *Provider) Info() string { return Info }

// Key returns the credential carts are sent with.
func (p *Provider) Key() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.key
}

// InstanceID identifies the provider across restarts.
func (p *Provider) InstanceID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.instanceID
}

// State implements namath.Provider.
func (p *Provider) State() (json.RawMessage, error) {
	p.mu.RLock()
	s := State{ProviderName: p.name, Key: p.key, InstanceID: p.instanceID, Type: Type}
	p.mu.RUnlock()

	data, err := json.Marshal(s)
	if err != nil {
		return nil, oops.Code("PROVIDER_STATE_FAILED").Wrap(err)
	}
	return data, nil
}

// BumpCart asks the channel to resend c. An unknown cart is logged only.
func (p *Provider) BumpCart(ctx context.Context, c cart.Cart) error {
	_, err := p.channel.Bump(ctx, c.ID)
	return err
}

// ExpireCart withdraws c. An unknown cart is logged only.
func (p *Provider) ExpireCart(ctx context.Context, c cart.Cart) error {
	_, err := p.channel.Expire(ctx, c.ID)
	return err
}

// SendCart sends c with this provider's key. respond is called once, with
// the decision for c only.
func (p *Provider) SendCart(ctx context.Context, c cart.Cart, respond namath.RespondFunc) (bool, error) {
	if respond == nil {
		return p.channel.Send(ctx, p.Key(), c, false)
	}

	// Register before sending so a fast decision is not missed.
	cancel := p.channel.Await(context.WithoutCancel(ctx), c.ID, func(_ context.Context, decided cart.Cart, d cart.Decision) {
		p.forget(c.ID)
		respond(decided, d.Approved(), d.RespondingUser, d.IsError)
	})
	p.track(c.ID, cancel)

	ok, err := p.channel.Send(ctx, p.Key(), c, true)
	if err != nil {
		p.forget(c.ID)
		cancel()
		return false, err
	}
	return ok, nil
}

func (p *Provider) track(id cart.ID, cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.pending[id]; ok {
		prev()
	}
	p.pending[id] = cancel
}

func (p *Provider) forget(id cart.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, id)
}

// Pending returns how many sent carts still await a decision.
func (p *Provider) Pending() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pending)
}

// Close stops waiting for outstanding decisions.
func (p *Provider) Close() {
	p.mu.Lock()
	cancels := make([]func(), 0, len(p.pending))
	for id, cancel := range p.pending {
		cancels = append(cancels, cancel)
		delete(p.pending, id)
	}
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// EditProvider opens the configuration dialog for this provider.
func (p *Provider) EditProvider(ctx context.Context, parent host.Window) error {
	return p.factory.EditProvider(ctx, parent, p)
}
