// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("PROVIDER_CONFIG_INVALID").Errorf("key is required")
	errutil.AssertErrorCode(t, err, "PROVIDER_CONFIG_INVALID")
}

func TestAssertCartError_WrappedCartContext(t *testing.T) {
	err := oops.Code("CART_NOT_FOUND").With("cart_id", "c1").Errorf("decision for unknown cart")
	errutil.AssertCartError(t, oops.With("operation", "deliver").Wrap(err), "CART_NOT_FOUND", "c1")
}
