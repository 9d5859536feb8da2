// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package approver

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	goplugin "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
)

// PluginClient wraps the go-plugin client for testability.
type PluginClient interface {
	Client() (goplugin.ClientProtocol, error)
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory starts real approver processes.
type DefaultClientFactory struct{}

// NewClient creates a go-plugin client for the binary at execPath.
func (DefaultClientFactory) NewClient(execPath string) PluginClient {
	return goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(execPath), // #nosec G204 -- path comes from operator config
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})
}

// Remote is a DecisionSource running in a child process.
type Remote struct {
	source messaging.DecisionSource
	client PluginClient
	once   sync.Once
}

var _ messaging.DecisionSource = (*Remote)(nil)

// LaunchOption configures Launch.
type LaunchOption func(*launchConfig)

type launchConfig struct {
	factory ClientFactory
	logger  *slog.Logger
}

// WithClientFactory replaces the process launcher.
func WithClientFactory(f ClientFactory) LaunchOption {
	return func(c *launchConfig) {
		c.factory = f
	}
}

// WithLaunchLogger sets the logger used for launch diagnostics.
func WithLaunchLogger(l *slog.Logger) LaunchOption {
	return func(c *launchConfig) {
		c.logger = l
	}
}

// Launch starts the approver binary at execPath and connects to it.
func Launch(execPath string, opts ...LaunchOption) (*Remote, error) {
	cfg := launchConfig{factory: DefaultClientFactory{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := os.Stat(execPath); err != nil {
		return nil, oops.Code("APPROVER_NOT_FOUND").With("path", execPath).Wrap(err)
	}

	client := cfg.factory.NewClient(execPath)
	protocol, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, oops.Code("APPROVER_CONNECT_FAILED").With("path", execPath).Wrap(err)
	}

	raw, err := protocol.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, oops.Code("APPROVER_DISPENSE_FAILED").With("path", execPath).Wrap(err)
	}

	source, ok := raw.(messaging.DecisionSource)
	if !ok {
		client.Kill()
		return nil, oops.Code("APPROVER_DISPENSE_FAILED").
			With("path", execPath).
			Errorf("plugin does not implement a decision source")
	}

	cfg.logger.Info("approver launched", "path", execPath)
	return &Remote{source: source, client: client}, nil
}

// Review forwards to the child process.
func (r *Remote) Review(ctx context.Context, sub messaging.Submission) (cart.Decision, error) {
	return r.source.Review(ctx, sub)
}

// Close kills the child process. It is safe to call more than once.
func (r *Remote) Close() {
	r.once.Do(r.client.Kill)
}
