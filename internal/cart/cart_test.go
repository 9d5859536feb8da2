// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package cart_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func TestApproval_String(t *testing.T) {
	tests := []struct {
		name     string
		input    cart.Approval
		expected string
	}{
		{"unknown", cart.ApprovalUnknown, "unknown"},
		{"approved", cart.ApprovalApproved, "approved"},
		{"rejected", cart.ApprovalRejected, "rejected"},
		{"out of range", cart.Approval(42), "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.input.String())
		})
	}
}

func TestParseApproval_Invalid(t *testing.T) {
	_, err := cart.ParseApproval("maybe")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "APPROVAL_INVALID")
}

func TestNew_IsWaiting(t *testing.T) {
	c := cart.New("c1", json.RawMessage(`{"venue":"MSG"}`))

	assert.Equal(t, cart.ID("c1"), c.ID)
	assert.True(t, c.IsWaiting)
	assert.Equal(t, cart.ApprovalUnknown, c.Approval)
	assert.Empty(t, c.RespondingUser)
	assert.False(t, c.UpdatedAt.IsZero())
	require.NoError(t, c.Validate())
}

func TestCart_Validate(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		c := cart.New("", nil)
		errutil.AssertErrorCode(t, c.Validate(), "CART_ID_REQUIRED")
	})

	t.Run("approved but waiting", func(t *testing.T) {
		c := cart.New("c1", nil)
		c.Approval = cart.ApprovalApproved
		errutil.AssertErrorCode(t, c.Validate(), "CART_STATE_INVALID")
	})
}

func TestCart_Apply(t *testing.T) {
	c := cart.New("c1", json.RawMessage(`{"total":"10.00"}`))
	decided := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Apply(cart.Decision{
		CartID:         "c1",
		Approval:       cart.ApprovalRejected,
		RespondingUser: "qb",
		DecidedAt:      decided,
	})

	assert.False(t, c.IsWaiting)
	assert.Equal(t, cart.ApprovalRejected, c.Approval)
	assert.Equal(t, "qb", c.RespondingUser)
	assert.Equal(t, decided, c.UpdatedAt)
	assert.JSONEq(t, `{"total":"10.00"}`, string(c.Payload))
	require.NoError(t, c.Validate())
}

func TestCart_JSONFieldNames(t *testing.T) {
	c := cart.New("c1", json.RawMessage(`{"venue":"Arena"}`))
	c.Apply(cart.Decision{CartID: "c1", Approval: cart.ApprovalApproved, RespondingUser: "qb"})

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "c1", fields["uuid"])
	assert.Equal(t, "approved", fields["isApproved"])
	assert.Equal(t, false, fields["isWaiting"])
	assert.Equal(t, "qb", fields["respondingUser"])

	var decoded cart.Cart
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cart.ApprovalApproved, decoded.Approval)
	assert.JSONEq(t, `{"venue":"Arena"}`, string(decoded.Payload))
}

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name     string
		decision cart.Decision
		wantErr  bool
	}{
		{"approved", cart.Decision{CartID: "c1", Approval: cart.ApprovalApproved, RespondingUser: "u"}, false},
		{"rejected", cart.Decision{CartID: "c1", Approval: cart.ApprovalRejected, RespondingUser: "u"}, false},
		{"missing cart", cart.Decision{Approval: cart.ApprovalApproved, RespondingUser: "u"}, true},
		{"unknown outcome", cart.Decision{CartID: "c1", RespondingUser: "u"}, true},
		{"missing user", cart.Decision{CartID: "c1", Approval: cart.ApprovalApproved}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "DECISION_INVALID")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewID_Monotonic(t *testing.T) {
	id1 := cart.NewID()
	id2 := cart.NewID()

	assert.NotEqual(t, id1, id2)
	assert.Less(t, string(id1), string(id2))

	parsed, err := cart.ParseULID(id1)
	require.NoError(t, err)
	assert.Equal(t, string(id1), parsed.String())
}

func TestParseULID_NotULID(t *testing.T) {
	_, err := cart.ParseULID("c1")
	errutil.AssertErrorCode(t, err, "CART_ID_NOT_ULID")
}
