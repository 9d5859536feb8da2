// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/jancy-plugins/namath-provider/internal/approver"
	"github.com/jancy-plugins/namath-provider/internal/logging"
)

// Default values for config keys.
const (
	defaultLogFormat       = logging.FormatJSON
	defaultLogLevel        = "info"
	defaultDecisionTimeout = 30 * time.Second
)

// config is the merged configuration. Flags override the config file.
type config struct {
	LogFormat       string        `koanf:"log_format"`
	LogLevel        string        `koanf:"log_level"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	ProviderName    string        `koanf:"provider_name"`
	ProviderKey     string        `koanf:"provider_key"`
	RespondingUser  string        `koanf:"responding_user"`
	ApproverPath    string        `koanf:"approver_path"`
	PriceLimit      string        `koanf:"price_limit"`
	DatabaseURL     string        `koanf:"database_url"`
	DecisionTimeout time.Duration `koanf:"decision_timeout"`
	StateFile       string        `koanf:"state_file"`
}

// Validate checks the configuration.
func (cfg *config) Validate() error {
	if err := logging.ValidateFormat(cfg.LogFormat); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.DecisionTimeout < 0 {
		return oops.Code("CONFIG_INVALID").
			With("decision_timeout", cfg.DecisionTimeout.String()).
			Errorf("decision_timeout must not be negative")
	}
	if cfg.PriceLimit != "" {
		if cfg.ApproverPath != "" {
			return oops.Code("CONFIG_INVALID").
				Errorf("price_limit and approver_path are mutually exclusive")
		}
		if _, err := approver.ParseLimit(cfg.PriceLimit); err != nil {
			return err
		}
	}
	return nil
}

func registerConfigFlags(flags *pflag.FlagSet) {
	flags.String("log-format", defaultLogFormat, "log format (json or text)")
	flags.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	flags.String("provider-name", "", "name of the provider created when none are saved")
	flags.String("provider-key", "", "key of the provider created when none are saved")
	flags.String("responding-user", "", "user reported on automatic decisions")
	flags.String("approver-path", "", "path to an out-of-process approver binary")
	flags.String("price-limit", "", "reject carts whose total exceeds this amount")
	flags.String("database-url", "", "PostgreSQL cart store URL (default: DATABASE_URL, empty = in memory)")
	flags.Duration("decision-timeout", defaultDecisionTimeout, "how long a decision source may take per cart")
	flags.String("state-file", "", "saved provider state (default: XDG_DATA_HOME/namath-provider/providers.json)")
}

// loadConfig layers the YAML config file under command-line flags. An
// explicit path must exist; the XDG default is optional.
func loadConfig(flags *pflag.FlagSet, path string, deps *Deps) (*config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		def, err := deps.ConfigFileGetter()
		if err != nil {
			return nil, err
		}
		path = def
	}
	if path != "" && (explicit || fileExists(path)) {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	fromFlags := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
		if f.Name == "config" {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
	})
	if err := k.Load(fromFlags, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	cfg := &config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
