// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// ErrAlreadyDecided is wrapped by Resolve when the newest record of a cart
// already carries a decision.
var ErrAlreadyDecided = errors.New("cart already decided")

// AlreadyDecided returns the CART_ALREADY_DECIDED error for id.
func AlreadyDecided(id ID) error {
	return oops.Code("CART_ALREADY_DECIDED").With("cart_id", string(id)).Wrap(ErrAlreadyDecided)
}

// Store records every cart sent through a channel, keyed by id.
//
// Records are never evicted. A store lives as long as the plugin that owns it.
type Store interface {
	// Record appends a cart. Duplicate ids are accepted; the newest record
	// wins on lookup.
	Record(ctx context.Context, c Cart) error

	// Find returns the most recently recorded cart with the id.
	// ok is false, with a nil error, when no such cart exists.
	Find(ctx context.Context, id ID) (c Cart, ok bool, err error)

	// Resolve applies a decision to the most recent record of its cart and
	// returns the updated cart. ok is false when the cart is unknown. A
	// record that is no longer waiting is left as is and ErrAlreadyDecided
	// is returned.
	Resolve(ctx context.Context, d Decision) (c Cart, ok bool, err error)

	// Len returns the number of records, duplicates included.
	Len(ctx context.Context) (int, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	carts  []Cart
	logger *slog.Logger
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithStoreLogger sets the logger used for duplicate-id diagnostics.
func WithStoreLogger(l *slog.Logger) MemoryStoreOption {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends a copy of the cart.
func (s *MemoryStore) Record(ctx context.Context, c Cart) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(c.ID) >= 0 {
		s.logger.WarnContext(ctx, "duplicate cart id recorded", "cart_id", string(c.ID))
	}
	s.carts = append(s.carts, c.Clone())
	return nil
}

// Find returns a copy of the newest cart with the id.
func (s *MemoryStore) Find(_ context.Context, id ID) (Cart, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Cart{}, false, nil
	}
	return s.carts[i].Clone(), true, nil
}

// Resolve applies the decision to the newest cart with the decision's id.
func (s *MemoryStore) Resolve(_ context.Context, d Decision) (Cart, bool, error) {
	if err := d.Validate(); err != nil {
		return Cart{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(d.CartID)
	if i < 0 {
		return Cart{}, false, nil
	}
	if !s.carts[i].IsWaiting {
		return Cart{}, true, AlreadyDecided(d.CartID)
	}
	s.carts[i].Apply(d)
	return s.carts[i].Clone(), true, nil
}

// Len returns the number of records.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts), nil
}

// indexLocked scans newest-first. Caller holds s.mu.
func (s *MemoryStore) indexLocked(id ID) int {
	for i := len(s.carts) - 1; i >= 0; i-- {
		if s.carts[i].ID == id {
			return i
		}
	}
	return -1
}
