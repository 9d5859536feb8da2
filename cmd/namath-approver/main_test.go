// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jancy-plugins/namath-provider/internal/approver"
	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestSourceFromEnv_Default(t *testing.T) {
	src, err := sourceFromEnv(envMap(nil), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, messaging.AutoApprover{}, src)
}

func TestSourceFromEnv_PriceLimit(t *testing.T) {
	src, err := sourceFromEnv(envMap(map[string]string{
		envPriceLimit:     "100.00",
		envRespondingUser: "qb",
	}), slog.Default())
	require.NoError(t, err)
	require.IsType(t, approver.PriceLimit{}, src)

	d, err := src.Review(context.Background(), messaging.Submission{
		Cart: cart.New("c1", json.RawMessage(`{"total":"150.00"}`)),
	})
	require.NoError(t, err)
	assert.Equal(t, cart.ApprovalRejected, d.Approval)
	assert.Equal(t, "qb", d.RespondingUser)
}

func TestSourceFromEnv_InvalidLimit(t *testing.T) {
	_, err := sourceFromEnv(envMap(map[string]string{envPriceLimit: "-1"}), slog.Default())
	errutil.AssertErrorCode(t, err, "PRICE_LIMIT_INVALID")
}
