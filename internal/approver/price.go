// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package approver provides decision sources that review carts on behalf of
// a responding user, including one that runs in a separate process.
package approver

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/shopspring/decimal"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
)

var _ messaging.DecisionSource = PriceLimit{}

// PriceLimit approves carts whose grand total is at or below Limit and
// rejects the rest. Carts without a computable total are approved.
type PriceLimit struct {
	Limit  decimal.Decimal
	User   string
	Logger *slog.Logger
}

// ParseLimit parses a decimal price limit such as "250.00".
func ParseLimit(s string) (decimal.Decimal, error) {
	limit, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, oops.Code("PRICE_LIMIT_INVALID").With("value", s).Wrap(err)
	}
	if limit.IsNegative() {
		return decimal.Decimal{}, oops.Code("PRICE_LIMIT_INVALID").With("value", s).Errorf("price limit must not be negative")
	}
	return limit, nil
}

// Review decides the submitted cart against the limit.
func (p PriceLimit) Review(ctx context.Context, sub messaging.Submission) (cart.Decision, error) {
	user := p.User
	if user == "" {
		user = messaging.DefaultRespondingUser
	}
	d := cart.Decision{
		CartID:         sub.Cart.ID,
		Approval:       cart.ApprovalApproved,
		RespondingUser: user,
		DecidedAt:      time.Now(),
	}

	details, err := cart.ParseDetails(sub.Cart.Payload)
	if err != nil {
		// Unreadable payloads are rejected and flagged.
		d.Approval = cart.ApprovalRejected
		d.IsError = true
		return d, nil
	}
	total, ok := details.GrandTotal()
	if !ok {
		return d, nil
	}
	if total.GreaterThan(p.Limit) {
		d.Approval = cart.ApprovalRejected
	}
	p.logger().DebugContext(ctx, "price limit review",
		"cart_id", string(sub.Cart.ID),
		"total", total.StringFixed(2),
		"limit", p.Limit.StringFixed(2),
		"approval", d.Approval.String())
	return d, nil
}

func (p PriceLimit) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
