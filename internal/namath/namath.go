// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package namath is the host-side Namath dashboard: it collects provider
// factories, owns the provider instances users create, and shows the
// decisions providers report back.
package namath

import (
	"context"
	"encoding/json"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/host"
)

// InterfaceName is the name the dashboard registers under.
const InterfaceName = "namathAPI"

// RespondFunc reports a decision on a sent cart back to the dashboard.
type RespondFunc func(c cart.Cart, approved bool, respondingUser string, isError bool)

// Factory creates providers of one kind.
type Factory interface {
	ID() string
	Description() string
	ShowToUser() bool
	PersistProviders() bool
	// CreateProvider rebuilds a provider from its saved state.
	CreateProvider(state json.RawMessage) (Provider, error)
	// AddProvider starts the interactive flow for a new provider.
	AddProvider(ctx context.Context, parent host.Window) error
}

// Provider sends carts somewhere and reports decisions back.
type Provider interface {
	Name() string
	Info() string
	// State returns a value CreateProvider accepts.
	State() (json.RawMessage, error)
	BumpCart(ctx context.Context, c cart.Cart) error
	ExpireCart(ctx context.Context, c cart.Cart) error
	SendCart(ctx context.Context, c cart.Cart, respond RespondFunc) (bool, error)
	EditProvider(ctx context.Context, parent host.Window) error
}
