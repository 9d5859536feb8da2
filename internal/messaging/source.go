// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/jancy-plugins/namath-provider/internal/cart"
)

// DefaultRespondingUser is the responder named by AutoApprover when none is set.
const DefaultRespondingUser = "some user"

// ErrNoDecision is returned by a DecisionSource that will never decide a
// submission. The cart stays waiting.
var ErrNoDecision = errors.New("no decision issued")

// Submission is what a channel hands to its decision source.
type Submission struct {
	// Key is the provider's credential for the backing service.
	Key  string
	Cart cart.Cart
}

// DecisionSource produces the approval decision for a submitted cart.
// Review may block for as long as a human takes to answer; it must return
// when ctx is done.
type DecisionSource interface {
	Review(ctx context.Context, sub Submission) (cart.Decision, error)
}

// SourceFunc adapts a function to DecisionSource.
type SourceFunc func(ctx context.Context, sub Submission) (cart.Decision, error)

// Review calls f.
func (f SourceFunc) Review(ctx context.Context, sub Submission) (cart.Decision, error) {
	return f(ctx, sub)
}

// AutoApprover approves every cart immediately.
type AutoApprover struct {
	User string
}

// Review approves the submitted cart.
func (a AutoApprover) Review(_ context.Context, sub Submission) (cart.Decision, error) {
	user := a.User
	if user == "" {
		user = DefaultRespondingUser
	}
	return cart.Decision{
		CartID:         sub.Cart.ID,
		Approval:       cart.ApprovalApproved,
		RespondingUser: user,
		DecidedAt:      time.Now(),
	}, nil
}

// Silent never decides. Useful when decisions only arrive through Deliver.
type Silent struct{}

// Review returns ErrNoDecision.
func (Silent) Review(context.Context, Submission) (cart.Decision, error) {
	return cart.Decision{}, ErrNoDecision
}
