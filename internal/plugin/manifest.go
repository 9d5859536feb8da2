// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package plugin

import (
	_ "embed"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/jancy-plugins/namath-provider/internal/host"
)

//go:embed plugin.yaml
var manifestYAML []byte

// Manifest describes the plugin to the host registry.
type Manifest struct {
	Name            string   `yaml:"name" json:"name" jsonschema:"pattern=^[a-z]([a-z0-9-]*[a-z0-9])?$,maxLength=64"`
	Version         string   `yaml:"version" json:"version" jsonschema:"minLength=1"`
	RegistryVersion int      `yaml:"registryVersion" json:"registryVersion" jsonschema:"enum=1"`
	Description     string   `yaml:"description,omitempty" json:"description,omitempty"`
	Capabilities    []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
}

const maxNameLength = 64

var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ManifestYAML returns the embedded plugin.yaml.
func ManifestYAML() []byte {
	return append([]byte(nil), manifestYAML...)
}

// LoadManifest parses the embedded plugin.yaml.
func LoadManifest() (*Manifest, error) {
	return ParseManifest(manifestYAML)
}

// ParseManifest parses and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.Code("MANIFEST_INVALID").Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("MANIFEST_INVALID").Wrap(err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest fields.
func (m *Manifest) Validate() error {
	if !namePattern.MatchString(m.Name) {
		return oops.Code("MANIFEST_INVALID").
			With("name", m.Name).
			Errorf("name must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen")
	}
	if len(m.Name) > maxNameLength {
		return oops.Code("MANIFEST_INVALID").
			With("name", m.Name).
			Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}
	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return oops.Code("MANIFEST_INVALID").With("version", m.Version).Wrap(err)
	}
	if m.RegistryVersion != host.RegistryVersion {
		return oops.Code("MANIFEST_INVALID").
			With("registry_version", m.RegistryVersion).
			Errorf("registryVersion must be %d", host.RegistryVersion)
	}
	for i, c := range m.Capabilities {
		if c == "" {
			return oops.Code("MANIFEST_INVALID").With("index", i).Errorf("capability must not be empty")
		}
	}
	return nil
}

// Props converts the manifest to registry props.
func (m *Manifest) Props() host.Props {
	return host.Props{
		Name:            m.Name,
		RegistryVersion: m.RegistryVersion,
		Capabilities:    append([]string(nil), m.Capabilities...),
	}
}
