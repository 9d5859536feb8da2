// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package host

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/jancy-plugins/namath-provider/internal/host/capability"
)

// DefaultPollInterval is how often WaitForInterface checks for a missing
// interface when no backoff is given.
const DefaultPollInterval = 500 * time.Millisecond

// API is the host surface a plugin is initialized with. Every call is
// checked against the plugin's granted capabilities.
type API interface {
	RegisterInterface(name string, value any) error
	Interface(name string) (any, error)
	WaitForInterface(ctx context.Context, name string, backoff retry.Backoff) (any, error)
	CreateDialog(parent Window, opts DialogOptions) (Dialog, error)
	RegisterAction(name string, h ActionHandler) error
	UnregisterAction(name string)
	Logger() *slog.Logger
}

// Host is the API view for one loaded plugin.
type Host struct {
	plugin     string
	interfaces *Interfaces
	actions    *Actions
	dialogs    DialogFactory
	enforcer   *capability.Enforcer
	logger     *slog.Logger
}

var _ API = (*Host)(nil)

var errNotRegistered = errors.New("interface not registered")

// Plugin returns the name this view acts for.
func (h *Host) Plugin() string { return h.plugin }

// Logger returns the plugin's component logger.
func (h *Host) Logger() *slog.Logger { return h.logger }

// RegisterInterface publishes value under name.
func (h *Host) RegisterInterface(name string, value any) error {
	if err := h.enforcer.Require(h.plugin, capability.RegisterInterface(name)); err != nil {
		return err
	}
	return h.interfaces.Register(h.plugin, name, value)
}

// Interface looks up name once. A missing interface is INTERFACE_NOT_FOUND.
func (h *Host) Interface(name string) (any, error) {
	if err := h.enforcer.Require(h.plugin, capability.LookupInterface(name)); err != nil {
		return nil, err
	}
	v, ok := h.interfaces.Lookup(name)
	if !ok {
		return nil, oops.Code("INTERFACE_NOT_FOUND").With("interface", name).Wrap(errNotRegistered)
	}
	return v, nil
}

// WaitForInterface polls for name until it is registered or ctx ends.
// A nil backoff polls every DefaultPollInterval. Retrying stops as soon as
// the interface is found.
func (h *Host) WaitForInterface(ctx context.Context, name string, backoff retry.Backoff) (any, error) {
	if err := h.enforcer.Require(h.plugin, capability.LookupInterface(name)); err != nil {
		return nil, err
	}
	if backoff == nil {
		backoff = retry.NewConstant(DefaultPollInterval)
	}

	var found any
	attempts := 0
	err := retry.Do(ctx, backoff, func(context.Context) error {
		attempts++
		v, ok := h.interfaces.Lookup(name)
		if !ok {
			return retry.RetryableError(errNotRegistered)
		}
		found = v
		return nil
	})
	if err != nil {
		return nil, oops.Code("INTERFACE_WAIT_ABORTED").
			With("interface", name).
			With("attempts", attempts).
			Wrap(err)
	}
	if attempts > 1 {
		h.logger.DebugContext(ctx, "interface became available", "interface", name, "attempts", attempts)
	}
	return found, nil
}

// CreateDialog opens a dialog parented to parent.
func (h *Host) CreateDialog(parent Window, opts DialogOptions) (Dialog, error) {
	if err := h.enforcer.Require(h.plugin, capability.DialogCreate); err != nil {
		return nil, err
	}
	return h.dialogs.Create(parent, opts)
}

// RegisterAction binds an action name to h.
func (h *Host) RegisterAction(name string, handler ActionHandler) error {
	if err := h.enforcer.Require(h.plugin, capability.RegisterAction(name)); err != nil {
		return err
	}
	return h.actions.Register(name, handler)
}

// UnregisterAction removes an action. Unknown names are ignored.
func (h *Host) UnregisterAction(name string) {
	h.actions.Unregister(name)
}
