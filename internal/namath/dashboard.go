// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package namath

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

// Response is a decision shown to the user.
type Response struct {
	CartID         cart.ID   `json:"cartId"`
	Provider       string    `json:"provider"`
	Approved       bool      `json:"approved"`
	RespondingUser string    `json:"respondingUser"`
	IsError        bool      `json:"isError"`
	At             time.Time `json:"at"`
}

// SavedProvider is the persisted form of a provider instance.
type SavedProvider struct {
	FactoryID string          `json:"factoryId"`
	State     json.RawMessage `json:"state"`
}

type instance struct {
	factoryID string
	provider  Provider
}

// Dashboard is an in-memory Namath. Safe for concurrent use.
type Dashboard struct {
	logger *slog.Logger
	onResp func(Response)

	mu        sync.RWMutex
	factories map[string]Factory
	factOrder []string
	instances []instance
	responses []Response
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithLogger sets the dashboard logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dashboard) {
		d.logger = l
	}
}

// WithResponseHook calls fn for every recorded response, after it is stored.
func WithResponseHook(fn func(Response)) Option {
	return func(d *Dashboard) {
		d.onResp = fn
	}
}

// NewDashboard creates an empty dashboard.
func NewDashboard(opts ...Option) *Dashboard {
	d := &Dashboard{
		logger:    slog.Default(),
		factories: make(map[string]Factory),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddFactory makes f available. Factory ids must be UUIDs.
func (d *Dashboard) AddFactory(f Factory) error {
	if f == nil {
		return oops.Code("FACTORY_INVALID").Errorf("factory is nil")
	}
	id := f.ID()
	if _, err := uuid.Parse(id); err != nil {
		return oops.Code("FACTORY_INVALID").With("factory_id", id).Wrap(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.factories[id]; ok {
		return oops.Code("FACTORY_ALREADY_ADDED").With("factory_id", id).Errorf("factory %s already added", id)
	}
	d.factories[id] = f
	d.factOrder = append(d.factOrder, id)
	d.logger.Info("factory added", "factory_id", id, "description", f.Description())
	return nil
}

// Factory returns the factory with id.
func (d *Dashboard) Factory(id string) (Factory, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.factories[id]
	return f, ok
}

// VisibleFactories returns the factories offered under the '+' button, in
// the order they were added.
func (d *Dashboard) VisibleFactories() []Factory {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Factory
	for _, id := range d.factOrder {
		if f := d.factories[id]; f.ShowToUser() {
			out = append(out, f)
		}
	}
	return out
}

// CreateProvider builds a provider through f and keeps it.
func (d *Dashboard) CreateProvider(ctx context.Context, f Factory, state json.RawMessage) (Provider, error) {
	id := f.ID()
	if _, ok := d.Factory(id); !ok {
		return nil, oops.Code("FACTORY_NOT_FOUND").With("factory_id", id).Errorf("factory %s was never added", id)
	}
	p, err := f.CreateProvider(state)
	if err != nil {
		return nil, oops.Code("PROVIDER_CREATE_FAILED").With("factory_id", id).Wrap(err)
	}

	d.mu.Lock()
	d.instances = append(d.instances, instance{factoryID: id, provider: p})
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "provider created", "factory_id", id, "provider", p.Name())
	return p, nil
}

// EditProvider acknowledges changes made to a provider in place.
func (d *Dashboard) EditProvider(ctx context.Context, p Provider) error {
	d.mu.RLock()
	known := d.indexLocked(p) >= 0
	d.mu.RUnlock()
	if !known {
		return oops.Code("PROVIDER_NOT_FOUND").With("provider", p.Name()).Errorf("provider is not on the dashboard")
	}
	d.logger.InfoContext(ctx, "provider edited", "provider", p.Name())
	return nil
}

// RemoveProvider drops p from the dashboard.
func (d *Dashboard) RemoveProvider(p Provider) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexLocked(p)
	if i < 0 {
		return false
	}
	d.instances = slices.Delete(d.instances, i, i+1)
	return true
}

func (d *Dashboard) indexLocked(p Provider) int {
	return slices.IndexFunc(d.instances, func(in instance) bool { return in.provider == p })
}

// Providers returns the provider instances in creation order.
func (d *Dashboard) Providers() []Provider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Provider, len(d.instances))
	for i, in := range d.instances {
		out[i] = in.provider
	}
	return out
}

// States returns the saved form of every provider whose factory persists
// providers.
func (d *Dashboard) States() ([]SavedProvider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []SavedProvider
	for _, in := range d.instances {
		if !d.factories[in.factoryID].PersistProviders() {
			continue
		}
		state, err := in.provider.State()
		if err != nil {
			return nil, oops.Code("PROVIDER_STATE_FAILED").
				With("factory_id", in.factoryID).
				With("provider", in.provider.Name()).
				Wrap(err)
		}
		out = append(out, SavedProvider{FactoryID: in.factoryID, State: state})
	}
	return out, nil
}

// Restore recreates saved providers. Entries whose factory is unknown or
// whose state is rejected are skipped; the returned error joins them.
func (d *Dashboard) Restore(ctx context.Context, saved []SavedProvider) (int, error) {
	var errs []error
	restored := 0
	for _, s := range saved {
		f, ok := d.Factory(s.FactoryID)
		if !ok {
			err := oops.Code("FACTORY_NOT_FOUND").With("factory_id", s.FactoryID).Errorf("cannot restore provider")
			errutil.LogWarn(ctx, d.logger, "skipping saved provider", err)
			errs = append(errs, err)
			continue
		}
		if _, err := d.CreateProvider(ctx, f, s.State); err != nil {
			errutil.LogWarn(ctx, d.logger, "skipping saved provider", err)
			errs = append(errs, err)
			continue
		}
		restored++
	}
	return restored, errors.Join(errs...)
}

// SendCart sends c through p and records the decision when it arrives.
func (d *Dashboard) SendCart(ctx context.Context, p Provider, c cart.Cart) (bool, error) {
	name := p.Name()
	return p.SendCart(ctx, c, func(decided cart.Cart, approved bool, user string, isError bool) {
		d.Respond(Response{
			CartID:         decided.ID,
			Provider:       name,
			Approved:       approved,
			RespondingUser: user,
			IsError:        isError,
			At:             time.Now(),
		})
	})
}

// Respond records a decision for display.
func (d *Dashboard) Respond(r Response) {
	d.mu.Lock()
	d.responses = append(d.responses, r)
	d.mu.Unlock()

	d.logger.Info("cart decision",
		"cart_id", string(r.CartID),
		"provider", r.Provider,
		"approved", r.Approved,
		"responding_user", r.RespondingUser,
		"is_error", r.IsError)
	if d.onResp != nil {
		d.onResp(r)
	}
}

// Responses returns the recorded decisions, oldest first.
func (d *Dashboard) Responses() []Response {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.responses)
}
