// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package cart

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewID generates a new time-ordered cart id.
func NewID() ID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

// ParseULID returns the ULID behind an id generated by NewID.
// Ids assigned by other submitters need not be ULIDs.
func ParseULID(id ID) (ulid.ULID, error) {
	parsed, err := ulid.Parse(string(id))
	if err != nil {
		return ulid.ULID{}, oops.Code("CART_ID_NOT_ULID").With("cart_id", string(id)).Wrap(err)
	}
	return parsed, nil
}
