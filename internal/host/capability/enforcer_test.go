// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jancy-plugins/namath-provider/internal/host/capability"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func TestEnforcer_Check(t *testing.T) {
	tests := []struct {
		name       string
		grants     []string
		capability string
		want       bool
	}{
		{"exact match", []string{"interface.lookup.namathAPI"}, "interface.lookup.namathAPI", true},
		{"single segment wildcard", []string{"interface.lookup.*"}, "interface.lookup.namathAPI", true},
		{"single wildcard does not cross segments", []string{"action.*"}, "action.register.save", false},
		{"double wildcard crosses segments", []string{"action.**"}, "action.register.save", true},
		{"prefix is not a match", []string{"interface.lookup"}, "interface.lookup.namathAPI", false},
		{"no grants", nil, "dialog.create", false},
		{"empty capability denied", []string{"**"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := capability.NewEnforcer()
			require.NoError(t, e.SetGrants("example-namath-provider", tt.grants))
			assert.Equal(t, tt.want, e.Check("example-namath-provider", tt.capability))
		})
	}
}

func TestEnforcer_UnknownPlugin(t *testing.T) {
	var e capability.Enforcer
	assert.False(t, e.Check("ghost", capability.DialogCreate))
	errutil.AssertErrorCode(t, e.Require("ghost", capability.DialogCreate), "CAPABILITY_DENIED")
}

func TestEnforcer_SetGrantsIsAtomic(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("p", []string{capability.DialogCreate}))

	err := e.SetGrants("p", []string{"interface.**", "[unclosed"})
	errutil.AssertErrorCode(t, err, "CAPABILITY_PATTERN_INVALID")
	assert.Equal(t, []string{capability.DialogCreate}, e.Grants("p"))

	errutil.AssertErrorCode(t, e.SetGrants("p", []string{""}), "CAPABILITY_PATTERN_INVALID")
	errutil.AssertErrorCode(t, e.SetGrants("", nil), "CAPABILITY_PLUGIN_REQUIRED")
}

func TestEnforcer_GrantsAreCopies(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("p", []string{"dialog.create"}))

	got := e.Grants("p")
	got[0] = "**"
	assert.False(t, e.Check("p", "interface.register.x"))
	assert.Nil(t, e.Grants("other"))
}

func TestEnforcer_RemoveAndList(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("b", nil))
	require.NoError(t, e.SetGrants("a", nil))
	assert.Equal(t, []string{"a", "b"}, e.Plugins())

	e.RemoveGrants("a")
	e.RemoveGrants("missing")
	assert.Equal(t, []string{"b"}, e.Plugins())
}

func TestCapabilityNames(t *testing.T) {
	assert.Equal(t, "interface.register.myMessageAPI", capability.RegisterInterface("myMessageAPI"))
	assert.Equal(t, "interface.lookup.namathAPI", capability.LookupInterface("namathAPI"))
	assert.Equal(t, "action.register.example-namath-provider:save", capability.RegisterAction("example-namath-provider:save"))
}
