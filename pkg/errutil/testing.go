// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err, "expected %s", code)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertCartError asserts that err carries code and names the cart it
// concerns in its cart_id context.
func AssertCartError(t *testing.T, err error, code, cartID string) {
	t.Helper()
	AssertErrorCode(t, err, code)
	oopsErr, _ := oops.AsOops(err)
	assert.Equal(t, cartID, oopsErr.Context()["cart_id"], "cart_id of %s", code)
}
