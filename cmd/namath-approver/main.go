// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Command namath-approver reviews carts in a separate process. The provider
// launches it through approver_path; it is not meant to be run by hand.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jancy-plugins/namath-provider/internal/approver"
	"github.com/jancy-plugins/namath-provider/internal/logging"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
)

var version = "dev"

// Environment variables read by the approver. The provider's environment is
// inherited by the plugin process.
const (
	envPriceLimit     = "NAMATH_APPROVER_PRICE_LIMIT"
	envRespondingUser = "NAMATH_APPROVER_USER"
	envLogLevel       = "NAMATH_APPROVER_LOG_LEVEL"
)

func main() {
	if os.Getenv(approver.Handshake.MagicCookieKey) != approver.Handshake.MagicCookieValue {
		fmt.Fprintln(os.Stderr, "namath-approver is launched by namath-provider; set approver_path to this binary")
		os.Exit(1)
	}

	// go-plugin forwards the child's stderr to the host log.
	logger, err := logging.Setup(logging.Options{
		Service: "namath-approver",
		Version: version,
		Format:  logging.FormatJSON,
		Level:   os.Getenv(envLogLevel),
		Writer:  os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	source, err := sourceFromEnv(os.Getenv, logger)
	if err != nil {
		logger.Error("invalid approver configuration", "error", err)
		os.Exit(1)
	}
	approver.Serve(source)
}

// sourceFromEnv picks a price limit when one is configured and approves
// everything otherwise.
func sourceFromEnv(getenv func(string) string, logger *slog.Logger) (messaging.DecisionSource, error) {
	user := getenv(envRespondingUser)
	raw := getenv(envPriceLimit)
	if raw == "" {
		return messaging.AutoApprover{User: user}, nil
	}
	limit, err := approver.ParseLimit(raw)
	if err != nil {
		return nil, err
	}
	return approver.PriceLimit{Limit: limit, User: user, Logger: logger}, nil
}
