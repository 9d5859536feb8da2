// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package host

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// ActionHandler runs a named command. args are the values the invoking
// window sent; sender identifies it.
type ActionHandler func(ctx context.Context, args map[string]string, sender string) error

// Actions is the host's command registry. Safe for concurrent use.
type Actions struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

// NewActions creates an empty registry.
func NewActions() *Actions {
	return &Actions{handlers: make(map[string]ActionHandler)}
}

// Register binds name to h. A name can only be bound once at a time.
func (a *Actions) Register(name string, h ActionHandler) error {
	if name == "" || h == nil {
		return oops.Code("ACTION_INVALID").Errorf("action name and handler are required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.handlers[name]; ok {
		return oops.Code("ACTION_ALREADY_REGISTERED").With("action", name).Errorf("action %q already registered", name)
	}
	a.handlers[name] = h
	return nil
}

// Unregister removes name. Unknown names are ignored.
func (a *Actions) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.handlers, name)
}

// Registered reports whether name has a handler.
func (a *Actions) Registered(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.handlers[name]
	return ok
}

// Dispatch invokes the handler for name. The handler runs without the
// registry lock held, so it may register or unregister actions.
func (a *Actions) Dispatch(ctx context.Context, name string, args map[string]string, sender string) error {
	a.mu.RLock()
	h, ok := a.handlers[name]
	a.mu.RUnlock()
	if !ok {
		return oops.Code("ACTION_NOT_FOUND").With("action", name).Errorf("no handler for action %q", name)
	}
	return h(ctx, args, sender)
}
