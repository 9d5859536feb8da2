// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package plugin_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jancy-plugins/namath-provider/internal/host/capability"
	"github.com/jancy-plugins/namath-provider/internal/plugin"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func TestLoadManifest_Embedded(t *testing.T) {
	m, err := plugin.LoadManifest()
	require.NoError(t, err)

	assert.Equal(t, "example-namath-provider", m.Name)
	assert.Equal(t, 1, m.RegistryVersion)
	assert.ElementsMatch(t, []string{
		capability.RegisterInterface("myMessageAPI"),
		capability.LookupInterface("namathAPI"),
		capability.RegisterAction("example-namath-provider:save"),
		capability.DialogCreate,
	}, m.Capabilities)

	props := m.Props()
	assert.Equal(t, m.Name, props.Name)
	props.Capabilities[0] = "**"
	assert.NotEqual(t, "**", m.Capabilities[0], "props must not alias the manifest")
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"not yaml", "name: [unclosed"},
		{"uppercase name", "name: Bad\nversion: 1.0.0\nregistryVersion: 1\n"},
		{"trailing hyphen", "name: bad-\nversion: 1.0.0\nregistryVersion: 1\n"},
		{"name too long", "name: a" + strings.Repeat("b", 64) + "\nversion: 1.0.0\nregistryVersion: 1\n"},
		{"missing version", "name: ok\nregistryVersion: 1\n"},
		{"non-semver version", "name: ok\nversion: one\nregistryVersion: 1\n"},
		{"wrong registry version", "name: ok\nversion: 1.0.0\nregistryVersion: 2\n"},
		{"empty capability", "name: ok\nversion: 1.0.0\nregistryVersion: 1\ncapabilities: [\"\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plugin.ParseManifest([]byte(tt.yaml))
			errutil.AssertErrorCode(t, err, "MANIFEST_INVALID")
		})
	}
}

func TestParseManifest_Minimal(t *testing.T) {
	m, err := plugin.ParseManifest([]byte("name: x\nversion: 0.1.0\nregistryVersion: 1\n"))
	require.NoError(t, err)
	assert.Empty(t, m.Capabilities)
}
