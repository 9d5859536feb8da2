// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package host

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/host/capability"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

// RegistryVersion is the plugin contract version this host implements.
const RegistryVersion = 1

// Props describe a plugin to the registry.
type Props struct {
	Name            string
	RegistryVersion int
	Capabilities    []string
}

// Plugin is a unit the registry can load.
type Plugin interface {
	Props() Props
	Init(ctx context.Context, api API, enabled bool) error
	Close(ctx context.Context) error
}

// Registry loads plugins and owns the shared host services.
type Registry struct {
	interfaces *Interfaces
	actions    *Actions
	dialogs    DialogFactory
	enforcer   *capability.Enforcer
	logger     *slog.Logger

	mu     sync.Mutex
	order  []string
	loaded map[string]Plugin
	closed bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDialogs replaces the in-memory dialog factory.
func WithDialogs(f DialogFactory) RegistryOption {
	return func(r *Registry) {
		r.dialogs = f
	}
}

// WithRegistryLogger sets the base logger; plugins get a child logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry with empty interface and action registries
// and an in-memory dialog factory.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		interfaces: NewInterfaces(),
		actions:    NewActions(),
		enforcer:   capability.NewEnforcer(),
		logger:     slog.Default(),
		loaded:     make(map[string]Plugin),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dialogs == nil {
		r.dialogs = NewMemoryDialogs(r.actions)
	}
	return r
}

// Interfaces returns the shared interface registry. Host-side services
// register here directly, without capability checks.
func (r *Registry) Interfaces() *Interfaces { return r.interfaces }

// Actions returns the shared action registry.
func (r *Registry) Actions() *Actions { return r.actions }

// Dialogs returns the dialog factory.
func (r *Registry) Dialogs() DialogFactory { return r.dialogs }

// Enforcer returns the capability enforcer.
func (r *Registry) Enforcer() *capability.Enforcer { return r.enforcer }

// Load grants p its capabilities and initializes it.
func (r *Registry) Load(ctx context.Context, p Plugin, enabled bool) error {
	props := p.Props()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return oops.Code("REGISTRY_CLOSED").With("plugin", props.Name).Errorf("registry is closed")
	}
	if props.RegistryVersion != RegistryVersion {
		return oops.Code("REGISTRY_VERSION_UNSUPPORTED").
			With("plugin", props.Name).
			With("registry_version", props.RegistryVersion).
			Errorf("plugin targets registry version %d, host implements %d", props.RegistryVersion, RegistryVersion)
	}
	if _, ok := r.loaded[props.Name]; ok {
		return oops.Code("PLUGIN_ALREADY_LOADED").With("plugin", props.Name).Errorf("plugin %q already loaded", props.Name)
	}
	if err := r.enforcer.SetGrants(props.Name, props.Capabilities); err != nil {
		return err
	}

	view := &Host{
		plugin:     props.Name,
		interfaces: r.interfaces,
		actions:    r.actions,
		dialogs:    r.dialogs,
		enforcer:   r.enforcer,
		logger:     r.logger.With("plugin", props.Name),
	}
	if err := p.Init(ctx, view, enabled); err != nil {
		r.enforcer.RemoveGrants(props.Name)
		r.interfaces.UnregisterOwner(props.Name)
		return oops.Code("PLUGIN_INIT_FAILED").With("plugin", props.Name).Wrap(err)
	}

	r.loaded[props.Name] = p
	r.order = append(r.order, props.Name)
	r.logger.InfoContext(ctx, "loaded plugin", "plugin", props.Name, "enabled", enabled)
	return nil
}

// Unload closes the named plugin and withdraws its interfaces and grants.
func (r *Registry) Unload(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.loaded[name]
	if !ok {
		return oops.Code("PLUGIN_NOT_LOADED").With("plugin", name).Errorf("plugin %q not loaded", name)
	}
	err := r.unloadLocked(ctx, name, p)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return err
}

func (r *Registry) unloadLocked(ctx context.Context, name string, p Plugin) error {
	err := p.Close(ctx)
	if err != nil {
		errutil.LogWarn(ctx, r.logger, "plugin close failed", err)
	}
	r.interfaces.UnregisterOwner(name)
	r.enforcer.RemoveGrants(name)
	delete(r.loaded, name)
	return err
}

// Plugins lists loaded plugin names in load order.
func (r *Registry) Plugins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Close unloads every plugin, newest first. Further loads fail.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if err := r.unloadLocked(ctx, name, r.loaded[name]); err != nil {
			errs = append(errs, err)
		}
	}
	r.order = nil
	r.closed = true
	return errors.Join(errs...)
}
