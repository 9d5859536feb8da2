// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jancy-plugins/namath-provider/internal/approver"
	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
	"github.com/jancy-plugins/namath-provider/internal/observability"
	"github.com/jancy-plugins/namath-provider/internal/store"
	"github.com/jancy-plugins/namath-provider/internal/xdg"
)

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StoreOpener opens the Postgres cart store.
	// Default: store.Open
	StoreOpener func(ctx context.Context, url string, logger *slog.Logger) (CartStore, error)

	// ApproverLauncher starts an out-of-process approver.
	// Default: approver.Launch
	ApproverLauncher func(path string, logger *slog.Logger) (DecisionService, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ConfigFileGetter returns the default config file path.
	// Default: xdg.ConfigFile
	ConfigFileGetter func() (string, error)

	// ProvidersFileGetter returns the default saved provider state path.
	// Default: xdg.ProvidersFile
	ProvidersFileGetter func() (string, error)
}

// CartStore is a persistent cart store that also records signals.
type CartStore interface {
	cart.Store
	messaging.SignalRecorder
	Close()
}

// DecisionService is a decision source holding external resources.
type DecisionService interface {
	messaging.DecisionSource
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Pending() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
	Metrics() *observability.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.StoreOpener == nil {
		out.StoreOpener = func(ctx context.Context, url string, logger *slog.Logger) (CartStore, error) {
			s, err := store.Open(ctx, url, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	if out.ApproverLauncher == nil {
		out.ApproverLauncher = func(path string, logger *slog.Logger) (DecisionService, error) {
			r, err := approver.Launch(path, approver.WithLaunchLogger(logger))
			if err != nil {
				return nil, err
			}
			return r, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.ConfigFileGetter == nil {
		out.ConfigFileGetter = xdg.ConfigFile
	}
	if out.ProvidersFileGetter == nil {
		out.ProvidersFileGetter = xdg.ProvidersFile
	}
	return out
}
