// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package approver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func TestParseLimit(t *testing.T) {
	limit, err := ParseLimit("250.50")
	require.NoError(t, err)
	assert.True(t, limit.Equal(decimal.RequireFromString("250.5")))

	_, err = ParseLimit("lots")
	errutil.AssertErrorCode(t, err, "PRICE_LIMIT_INVALID")

	_, err = ParseLimit("-1")
	errutil.AssertErrorCode(t, err, "PRICE_LIMIT_INVALID")
}

func TestPriceLimit_Review(t *testing.T) {
	limit := PriceLimit{Limit: decimal.RequireFromString("200"), User: "buyer"}

	tests := []struct {
		name      string
		payload   string
		want      cart.Approval
		wantError bool
	}{
		{"total under limit", `{"total": 150.25}`, cart.ApprovalApproved, false},
		{"total at limit", `{"total": "200.00"}`, cart.ApprovalApproved, false},
		{"total over limit", `{"total": 200.01}`, cart.ApprovalRejected, false},
		{
			"summed from ticket groups",
			`{"ticketGroups":[{"seats":["1","2"],"price":{"basePrice":90,"tax":15}}]}`,
			cart.ApprovalRejected,
			false,
		},
		{"no total", `{"event":"Jets"}`, cart.ApprovalApproved, false},
		{"unreadable payload", `not json`, cart.ApprovalRejected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cart.New("cart-1", json.RawMessage(tt.payload))
			d, err := limit.Review(context.Background(), messaging.Submission{Cart: c})
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Approval)
			assert.Equal(t, tt.wantError, d.IsError)
			assert.Equal(t, "buyer", d.RespondingUser)
			assert.Equal(t, cart.ID("cart-1"), d.CartID)
			require.NoError(t, d.Validate())
		})
	}
}

func TestPriceLimit_DefaultUser(t *testing.T) {
	d, err := PriceLimit{}.Review(context.Background(), messaging.Submission{Cart: cart.New("c", nil)})
	require.NoError(t, err)
	assert.Equal(t, messaging.DefaultRespondingUser, d.RespondingUser)
}
