// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package approver

import (
	"context"
	"errors"
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
)

// PluginName is the key the approver is dispensed under.
const PluginName = "approver"

// Handshake is shared by the provider and the approver binary. A mismatch
// makes go-plugin refuse the connection.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "NAMATH_APPROVER_PLUGIN",
	MagicCookieValue: "e1b3c0f2-namath-approver",
}

// PluginMap is the set of plugins the provider can dispense.
var PluginMap = map[string]goplugin.Plugin{
	PluginName: &Plugin{},
}

// Plugin implements go-plugin's net/rpc Plugin interface.
type Plugin struct {
	// Impl is used by the approver process only.
	Impl messaging.DecisionSource
}

// Server returns the RPC server for the approver process.
func (p *Plugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	if p.Impl == nil {
		return nil, errors.New("approver: decision source is nil")
	}
	return &RPCServer{Impl: p.Impl}, nil
}

// Client returns the RPC client for the provider process.
func (p *Plugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// ReviewArgs is the wire form of a submission.
type ReviewArgs struct {
	Key  string
	Cart cart.Cart
}

// ReviewReply is the wire form of a review result. NoDecision carries
// messaging.ErrNoDecision across the process boundary.
type ReviewReply struct {
	Decision   cart.Decision
	NoDecision bool
}

// RPCServer exposes a DecisionSource over net/rpc.
type RPCServer struct {
	Impl messaging.DecisionSource
}

// Review is the net/rpc entry point.
func (s *RPCServer) Review(args ReviewArgs, reply *ReviewReply) error {
	d, err := s.Impl.Review(context.Background(), messaging.Submission{Key: args.Key, Cart: args.Cart})
	if errors.Is(err, messaging.ErrNoDecision) {
		reply.NoDecision = true
		return nil
	}
	if err != nil {
		return err
	}
	reply.Decision = d
	return nil
}

// RPCClient is a DecisionSource backed by a remote approver.
type RPCClient struct {
	client *rpc.Client
}

var _ messaging.DecisionSource = (*RPCClient)(nil)

// Review forwards the submission and waits for the reply or ctx.
func (c *RPCClient) Review(ctx context.Context, sub messaging.Submission) (cart.Decision, error) {
	var reply ReviewReply
	call := c.client.Go("Plugin.Review", ReviewArgs{Key: sub.Key, Cart: sub.Cart}, &reply, make(chan *rpc.Call, 1))

	select {
	case <-ctx.Done():
		return cart.Decision{}, oops.Code("REMOTE_REVIEW_CANCELED").With("cart_id", string(sub.Cart.ID)).Wrap(ctx.Err())
	case done := <-call.Done:
		if done.Error != nil {
			return cart.Decision{}, oops.Code("REMOTE_REVIEW_FAILED").With("cart_id", string(sub.Cart.ID)).Wrap(done.Error)
		}
	}
	if reply.NoDecision {
		return cart.Decision{}, messaging.ErrNoDecision
	}
	return reply.Decision, nil
}

// Serve runs impl as an approver plugin process. It blocks until the
// provider disconnects.
func Serve(impl messaging.DecisionSource) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			PluginName: &Plugin{Impl: impl},
		},
	})
}
