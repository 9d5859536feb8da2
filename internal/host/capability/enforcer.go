// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package capability gates what a loaded plugin may do on the host.
//
// Capabilities are dotted names such as "interface.register.myMessageAPI"
// or "dialog.create". Grants are gobwas/glob patterns with '.' as the
// segment separator:
//   - '*' matches a single segment ("interface.lookup.*")
//   - '**' matches any number of segments ("action.**")
package capability

import (
	"sort"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Capability name builders for the host surface.
const (
	DialogCreate = "dialog.create"
)

// RegisterInterface is the capability to publish interface name.
func RegisterInterface(name string) string { return "interface.register." + name }

// LookupInterface is the capability to resolve interface name.
func LookupInterface(name string) string { return "interface.lookup." + name }

// RegisterAction is the capability to register action name.
func RegisterAction(name string) string { return "action.register." + name }

type grant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer checks plugin capabilities. The zero value is ready to use.
type Enforcer struct {
	mu     sync.RWMutex
	grants map[string][]grant
}

// NewEnforcer creates an empty enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[string][]grant)}
}

// SetGrants replaces the grants for plugin. Either every pattern compiles
// and the grants are replaced, or nothing changes.
func (e *Enforcer) SetGrants(plugin string, patterns []string) error {
	if plugin == "" {
		return oops.Code("CAPABILITY_PLUGIN_REQUIRED").Errorf("plugin name cannot be empty")
	}

	compiled := make([]grant, len(patterns))
	for i, p := range patterns {
		if p == "" {
			return oops.Code("CAPABILITY_PATTERN_INVALID").
				With("plugin", plugin).
				With("index", i).
				Errorf("empty capability pattern")
		}
		g, err := glob.Compile(p, '.')
		if err != nil {
			return oops.Code("CAPABILITY_PATTERN_INVALID").
				With("plugin", plugin).
				With("pattern", p).
				Wrap(err)
		}
		compiled[i] = grant{pattern: p, glob: g}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants == nil {
		e.grants = make(map[string][]grant)
	}
	e.grants[plugin] = compiled
	return nil
}

// RemoveGrants forgets plugin. Unknown plugins are ignored.
func (e *Enforcer) RemoveGrants(plugin string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, plugin)
}

// Grants returns a copy of the patterns granted to plugin, or nil.
func (e *Enforcer) Grants(plugin string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	gs, ok := e.grants[plugin]
	if !ok {
		return nil
	}
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.pattern
	}
	return out
}

// Plugins lists plugins with grants, sorted.
func (e *Enforcer) Plugins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.grants))
	for name := range e.grants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check reports whether plugin holds capability. Unknown plugins and empty
// capabilities are denied.
func (e *Enforcer) Check(plugin, capability string) bool {
	if capability == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, g := range e.grants[plugin] {
		if g.glob.Match(capability) {
			return true
		}
	}
	return false
}

// Require is Check as an error.
func (e *Enforcer) Require(plugin, capability string) error {
	if e.Check(plugin, capability) {
		return nil
	}
	return oops.Code("CAPABILITY_DENIED").
		With("plugin", plugin).
		With("capability", capability).
		Errorf("plugin %q lacks capability %q", plugin, capability)
}
