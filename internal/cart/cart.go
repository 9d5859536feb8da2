// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package cart contains the cart record, approval decisions, and cart storage.
package cart

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// ID identifies a cart. Submitters assign it before sending and it never changes.
type ID string

// Approval is the tri-state approval flag of a cart.
type Approval uint8

const (
	ApprovalUnknown Approval = iota
	ApprovalApproved
	ApprovalRejected
)

func (a Approval) String() string {
	switch a {
	case ApprovalUnknown:
		return "unknown"
	case ApprovalApproved:
		return "approved"
	case ApprovalRejected:
		return "rejected"
	default:
		return "invalid"
	}
}

// ParseApproval parses the string form produced by Approval.String.
func ParseApproval(s string) (Approval, error) {
	switch s {
	case "unknown", "":
		return ApprovalUnknown, nil
	case "approved":
		return ApprovalApproved, nil
	case "rejected":
		return ApprovalRejected, nil
	default:
		return ApprovalUnknown, oops.Code("APPROVAL_INVALID").With("value", s).Errorf("unknown approval %q", s)
	}
}

// MarshalJSON encodes the approval as its string form.
func (a Approval) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes the string form of an approval.
func (a *Approval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return oops.Code("APPROVAL_INVALID").Wrap(err)
	}
	parsed, err := ParseApproval(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Cart is one ticket-purchase request awaiting an approval decision.
//
// Payload holds the descriptive fields (venue, seats, price, ...) exactly as
// the submitter produced them. Nothing in this module rewrites it.
type Cart struct {
	ID             ID              `json:"uuid"`
	Approval       Approval        `json:"isApproved"`
	IsWaiting      bool            `json:"isWaiting"`
	IsError        bool            `json:"isError"`
	RespondingUser string          `json:"respondingUser,omitempty"`
	CreatedAt      time.Time       `json:"cartCreatedTime"`
	UpdatedAt      time.Time       `json:"cartUpdated"`
	ExpiresAt      *time.Time      `json:"cartExpirationTime,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// New creates a waiting cart with the given id and payload.
func New(id ID, payload json.RawMessage) Cart {
	now := time.Now()
	return Cart{
		ID:        id,
		Approval:  ApprovalUnknown,
		IsWaiting: true,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   payload,
	}
}

// Validate checks that the cart can be recorded.
func (c Cart) Validate() error {
	if c.ID == "" {
		return oops.Code("CART_ID_REQUIRED").Errorf("cart id is required")
	}
	if c.IsWaiting != (c.Approval == ApprovalUnknown) {
		return oops.Code("CART_STATE_INVALID").
			With("cart_id", string(c.ID)).
			With("approval", c.Approval.String()).
			With("is_waiting", c.IsWaiting).
			Errorf("cart must be waiting exactly when its approval is unknown")
	}
	return nil
}

// Apply records a decision on the cart. It is the only mutation a cart sees
// after it has been sent.
func (c *Cart) Apply(d Decision) {
	c.Approval = d.Approval
	c.RespondingUser = d.RespondingUser
	c.IsError = d.IsError
	c.IsWaiting = false
	c.UpdatedAt = d.DecidedAt
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
}

// Clone returns a copy that shares no mutable memory with c.
func (c Cart) Clone() Cart {
	out := c
	if c.Payload != nil {
		out.Payload = append(json.RawMessage(nil), c.Payload...)
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}

// Decision is an approval or rejection issued for a previously sent cart.
type Decision struct {
	CartID         ID        `json:"cartId"`
	Approval       Approval  `json:"isApproved"`
	RespondingUser string    `json:"respondingUser"`
	IsError        bool      `json:"isError"`
	DecidedAt      time.Time `json:"decidedAt"`
}

// Approved reports whether the decision approves the cart.
func (d Decision) Approved() bool {
	return d.Approval == ApprovalApproved
}

// Validate checks that the decision references a cart, carries a final
// outcome, and names its responder.
func (d Decision) Validate() error {
	if d.CartID == "" {
		return oops.Code("DECISION_INVALID").Errorf("decision cart id is required")
	}
	if d.Approval != ApprovalApproved && d.Approval != ApprovalRejected {
		return oops.Code("DECISION_INVALID").
			With("cart_id", string(d.CartID)).
			With("approval", d.Approval.String()).
			Errorf("decision must approve or reject")
	}
	if d.RespondingUser == "" {
		return oops.Code("DECISION_INVALID").
			With("cart_id", string(d.CartID)).
			Errorf("decision responding user is required")
	}
	return nil
}
