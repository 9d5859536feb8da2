// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package cart_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func TestMemoryStore_RecordThenFind(t *testing.T) {
	store := cart.NewMemoryStore()
	ctx := context.Background()

	c := cart.New(cart.NewID(), json.RawMessage(`{"venue":"Arena","row":"9"}`))
	require.NoError(t, store.Record(ctx, c))

	found, ok, err := store.Find(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c, found)
}

func TestMemoryStore_FindUnknown(t *testing.T) {
	store := cart.NewMemoryStore()

	found, ok, err := store.Find(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, cart.Cart{}, found)
}

func TestMemoryStore_RecordRequiresID(t *testing.T) {
	store := cart.NewMemoryStore()

	err := store.Record(context.Background(), cart.New("", nil))
	errutil.AssertErrorCode(t, err, "CART_ID_REQUIRED")

	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_DuplicateIDNewestWins(t *testing.T) {
	var buf bytes.Buffer
	store := cart.NewMemoryStore(cart.WithStoreLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, cart.New("dup", json.RawMessage(`{"n":1}`))))
	require.NoError(t, store.Record(ctx, cart.New("dup", json.RawMessage(`{"n":2}`))))

	found, ok, err := store.Find(ctx, "dup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"n":2}`, string(found.Payload))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "duplicate cart id recorded")
}

func TestMemoryStore_FindReturnsCopy(t *testing.T) {
	store := cart.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, cart.New("c1", json.RawMessage(`{"a":1}`))))

	found, _, err := store.Find(ctx, "c1")
	require.NoError(t, err)
	found.Payload[2] = 'b'
	found.IsWaiting = false

	again, _, err := store.Find(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, again.IsWaiting)
	assert.Equal(t, `{"a":1}`, string(again.Payload))
}

func TestMemoryStore_Resolve(t *testing.T) {
	store := cart.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, cart.New("c1", nil)))

	updated, ok, err := store.Resolve(ctx, cart.Decision{
		CartID:         "c1",
		Approval:       cart.ApprovalApproved,
		RespondingUser: "some user",
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, updated.IsWaiting)
	assert.Equal(t, "some user", updated.RespondingUser)

	found, _, err := store.Find(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, updated, found)
}

func TestMemoryStore_ResolveAlreadyDecided(t *testing.T) {
	store := cart.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, cart.New("c1", nil)))

	_, _, err := store.Resolve(ctx, cart.Decision{
		CartID: "c1", Approval: cart.ApprovalApproved, RespondingUser: "some user",
	})
	require.NoError(t, err)

	_, ok, err := store.Resolve(ctx, cart.Decision{
		CartID: "c1", Approval: cart.ApprovalRejected, RespondingUser: "mallory",
	})
	errutil.AssertCartError(t, err, "CART_ALREADY_DECIDED", "c1")
	assert.ErrorIs(t, err, cart.ErrAlreadyDecided)
	assert.True(t, ok)

	found, _, err := store.Find(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, cart.ApprovalApproved, found.Approval)
	assert.Equal(t, "some user", found.RespondingUser)

	// A newer record with the same id waits for its own decision.
	require.NoError(t, store.Record(ctx, cart.New("c1", nil)))
	updated, ok, err := store.Resolve(ctx, cart.Decision{
		CartID: "c1", Approval: cart.ApprovalRejected, RespondingUser: "mallory",
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cart.ApprovalRejected, updated.Approval)
}

func TestMemoryStore_ResolveUnknown(t *testing.T) {
	store := cart.NewMemoryStore()

	_, ok, err := store.Resolve(context.Background(), cart.Decision{
		CartID:         "ghost",
		Approval:       cart.ApprovalApproved,
		RespondingUser: "some user",
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ResolveInvalidDecision(t *testing.T) {
	store := cart.NewMemoryStore()

	_, _, err := store.Resolve(context.Background(), cart.Decision{CartID: "c1"})
	errutil.AssertErrorCode(t, err, "DECISION_INVALID")
}
