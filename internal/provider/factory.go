// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/host"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
	"github.com/jancy-plugins/namath-provider/internal/namath"
)

const (
	// FactoryID is the fixed identity of this factory in Namath.
	FactoryID = "69c30bd7-0ae7-4d2e-9517-69414d850a42"
	// FactoryDescription is shown when the user clicks '+' in Namath.
	FactoryDescription = "Create a Namath Instance that sends Carts to MyNamathExample"
)

// NamathAPI is the part of Namath the factory calls back into.
type NamathAPI interface {
	AddFactory(f namath.Factory) error
	CreateProvider(ctx context.Context, f namath.Factory, state json.RawMessage) (namath.Provider, error)
	EditProvider(ctx context.Context, p namath.Provider) error
}

var _ NamathAPI = (*namath.Dashboard)(nil)

// Factory creates example providers that share one cart channel.
type Factory struct {
	api     host.API
	channel *messaging.Channel
	logger  *slog.Logger

	mu        sync.Mutex
	providers []*Provider
}

var _ namath.Factory = (*Factory)(nil)

// NewFactory creates a factory. api is used for dialogs, actions, and
// looking up Namath when a dialog is saved.
func NewFactory(api host.API, channel *messaging.Channel) (*Factory, error) {
	if api == nil || channel == nil {
		return nil, oops.Code("FACTORY_INVALID").Errorf("host api and channel are required")
	}
	return &Factory{api: api, channel: channel, logger: api.Logger()}, nil
}

// ID implements namath.Factory.
func (f *Factory) ID() string { return FactoryID }

// Description implements namath.Factory.
func (f *Factory) Description() string { return FactoryDescription }

// ShowToUser implements namath.Factory.
func (f *Factory) ShowToUser() bool { return true }

// PersistProviders implements namath.Factory.
func (f *Factory) PersistProviders() bool { return true }

// CreateProvider implements namath.Factory.
func (f *Factory) CreateProvider(state json.RawMessage) (namath.Provider, error) {
	s, err := ParseState(state)
	if err != nil {
		return nil, err
	}
	return f.NewProvider(s), nil
}

// NewProvider builds a provider from a decoded state.
func (f *Factory) NewProvider(s State) *Provider {
	p := newProvider(f, s)
	f.mu.Lock()
	f.providers = append(f.providers, p)
	f.mu.Unlock()
	return p
}

// AddProvider implements namath.Factory by opening the configuration dialog.
func (f *Factory) AddProvider(ctx context.Context, parent host.Window) error {
	return f.openDialog(ctx, parent, nil)
}

// EditProvider opens the configuration dialog for p.
func (f *Factory) EditProvider(ctx context.Context, parent host.Window, p *Provider) error {
	if p == nil {
		err := oops.Code("PROVIDER_REQUIRED").Errorf("no provider to edit")
		f.logger.ErrorContext(ctx, "no provider to edit")
		return err
	}
	return f.openDialog(ctx, parent, p)
}

// Close stops every provider from waiting on outstanding decisions.
func (f *Factory) Close() {
	f.mu.Lock()
	providers := f.providers
	f.providers = nil
	f.mu.Unlock()

	for _, p := range providers {
		p.Close()
	}
}

func (f *Factory) namath() (NamathAPI, error) {
	v, err := f.api.Interface(namath.InterfaceName)
	if err != nil {
		return nil, err
	}
	api, ok := v.(NamathAPI)
	if !ok {
		return nil, oops.Code("NAMATH_API_INVALID").
			With("interface", namath.InterfaceName).
			Errorf("registered %s does not implement the Namath API", namath.InterfaceName)
	}
	return api, nil
}
