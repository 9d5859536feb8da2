// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	registerConfigFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	deps, _ := testDeps(t)

	cfg, err := loadConfig(parseFlags(t), "", deps.withDefaults())
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, defaultDecisionTimeout, cfg.DecisionTimeout)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.ProviderKey)
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	deps, _ := testDeps(t)
	path := writeConfig(t, `
log_format: text
provider_name: From File
provider_key: file-key
responding_user: quarterback
decision_timeout: 45s
`)

	cfg, err := loadConfig(parseFlags(t, "--provider-key", "flag-key"), path, deps.withDefaults())
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "From File", cfg.ProviderName)
	assert.Equal(t, "flag-key", cfg.ProviderKey)
	assert.Equal(t, "quarterback", cfg.RespondingUser)
	assert.Equal(t, 45*time.Second, cfg.DecisionTimeout)
}

func TestLoadConfig_DefaultFileIsOptional(t *testing.T) {
	deps, dir := testDeps(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("provider_key: xdg-key\n"), 0o600))

	cfg, err := loadConfig(parseFlags(t), "", deps.withDefaults())
	require.NoError(t, err)
	assert.Equal(t, "xdg-key", cfg.ProviderKey)

	require.NoError(t, os.Remove(filepath.Join(dir, "config.yaml")))
	cfg, err = loadConfig(parseFlags(t), "", deps.withDefaults())
	require.NoError(t, err)
	assert.Empty(t, cfg.ProviderKey)
}

func TestLoadConfig_ExplicitFileMustExist(t *testing.T) {
	deps, _ := testDeps(t)

	_, err := loadConfig(parseFlags(t), filepath.Join(t.TempDir(), "nope.yaml"), deps.withDefaults())
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoadConfig_DatabaseURLFromEnvironment(t *testing.T) {
	deps, _ := testDeps(t)
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := loadConfig(parseFlags(t), "", deps.withDefaults())
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)

	cfg, err = loadConfig(parseFlags(t, "--database-url", "postgres://flag/db"), "", deps.withDefaults())
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/db", cfg.DatabaseURL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config
		wantCode string
	}{
		{name: "valid", cfg: config{LogFormat: "json", LogLevel: "info"}},
		{name: "bad format", cfg: config{LogFormat: "xml"}, wantCode: "LOG_FORMAT_INVALID"},
		{name: "bad level", cfg: config{LogLevel: "loud"}, wantCode: "LOG_LEVEL_INVALID"},
		{name: "negative timeout", cfg: config{DecisionTimeout: -time.Second}, wantCode: "CONFIG_INVALID"},
		{name: "bad price limit", cfg: config{PriceLimit: "cheap"}, wantCode: "PRICE_LIMIT_INVALID"},
		{name: "price limit with approver", cfg: config{PriceLimit: "10", ApproverPath: "/bin/approver"}, wantCode: "CONFIG_INVALID"},
		{name: "price limit", cfg: config{PriceLimit: "250.00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}
