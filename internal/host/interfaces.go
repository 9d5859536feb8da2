// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package host models the plugin host application: its named-interface
// registry, action registry, dialog factory, and the plugin registry that
// loads plugins against them.
package host

import (
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Interfaces is the host's named service registry. Safe for concurrent use.
type Interfaces struct {
	mu    sync.RWMutex
	byKey map[string]registeredInterface
}

type registeredInterface struct {
	owner string
	value any
}

// NewInterfaces creates an empty registry.
func NewInterfaces() *Interfaces {
	return &Interfaces{byKey: make(map[string]registeredInterface)}
}

// Register publishes value under name on behalf of owner.
func (r *Interfaces) Register(owner, name string, value any) error {
	if name == "" || value == nil {
		return oops.Code("INTERFACE_INVALID").With("owner", owner).Errorf("interface name and value are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[name]; ok {
		return oops.Code("INTERFACE_ALREADY_REGISTERED").
			With("interface", name).
			With("owner", existing.owner).
			Errorf("interface %q already registered", name)
	}
	r.byKey[name] = registeredInterface{owner: owner, value: value}
	return nil
}

// Lookup returns the interface registered under name.
func (r *Interfaces) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ri, ok := r.byKey[name]
	return ri.value, ok
}

// Unregister removes name. Unknown names are ignored.
func (r *Interfaces) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, name)
}

// UnregisterOwner removes every interface owner registered.
func (r *Interfaces) UnregisterOwner(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, ri := range r.byKey {
		if ri.owner == owner {
			delete(r.byKey, name)
		}
	}
}

// Names lists registered interface names, sorted.
func (r *Interfaces) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byKey))
	for name := range r.byKey {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
