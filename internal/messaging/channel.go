// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package messaging connects cart submitters with the service that decides
// on their carts.
//
// A Channel records every sent cart in a cart.Store, asks a DecisionSource
// for a decision in the background, and publishes the decision to
// listeners. Decisions may also arrive out of band through Deliver.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

const tracerName = "github.com/jancy-plugins/namath-provider/internal/messaging"

// Listener receives a published decision together with the updated cart.
type Listener func(ctx context.Context, c cart.Cart, d cart.Decision)

// Subscription is a fan-out listener registration returned by Subscribe.
type Subscription struct {
	listener Listener
	active   atomic.Bool
}

// waiter is a one-shot listener for a single cart.
type waiter struct {
	listener Listener
	fired    atomic.Bool
	stop     func() bool
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(ch *Channel) {
		if l != nil {
			ch.logger = l
		}
	}
}

// WithMetrics records channel activity in m.
func WithMetrics(m *Metrics) Option {
	return func(ch *Channel) { ch.metrics = m }
}

// WithSignalRecorder forwards bump, expire, and test signals to r.
func WithSignalRecorder(r SignalRecorder) Option {
	return func(ch *Channel) {
		if r != nil {
			ch.signals = r
		}
	}
}

// WithDecisionTimeout bounds how long a single review may take.
// Zero means no bound beyond the channel's lifetime.
func WithDecisionTimeout(d time.Duration) Option {
	return func(ch *Channel) { ch.timeout = d }
}

// Channel is the cart message API shared by every provider of a plugin.
type Channel struct {
	store   cart.Store
	source  DecisionSource
	logger  *slog.Logger
	metrics *Metrics
	signals SignalRecorder
	timeout time.Duration
	tracer  trace.Tracer

	mu        sync.Mutex
	listeners []*Subscription
	waiters   map[cart.ID][]*waiter
	closed    bool

	// publishMu serializes deliveries so listeners observe publish order.
	publishMu sync.Mutex
	// invoking is the subscription whose listener publish is running.
	invoking atomic.Pointer[Subscription]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a channel over store. Decisions for sends that want a
// response come from source.
func New(store cart.Store, source DecisionSource, opts ...Option) (*Channel, error) {
	if store == nil {
		return nil, oops.Code("CHANNEL_INVALID").Errorf("cart store is required")
	}
	if source == nil {
		return nil, oops.Code("CHANNEL_INVALID").Errorf("decision source is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := &Channel{
		store:   store,
		source:  source,
		logger:  slog.Default(),
		signals: discardSignals{},
		tracer:  otel.Tracer(tracerName),
		waiters: make(map[cart.ID][]*waiter),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch, nil
}

// Store returns the store the channel records carts in.
func (ch *Channel) Store() cart.Store {
	return ch.store
}

// Send records c and, if wantsResponse is set, requests a decision for it
// in the background. It returns once the cart is recorded; the decision is
// published later to listeners.
func (ch *Channel) Send(ctx context.Context, key string, c cart.Cart, wantsResponse bool) (bool, error) {
	ctx, span := ch.tracer.Start(ctx, "messaging.Send", trace.WithAttributes(
		attribute.String("cart.id", string(c.ID)),
		attribute.Bool("cart.wants_response", wantsResponse),
	))
	defer span.End()

	if ch.isClosed() {
		return false, ch.fail(span, errClosed())
	}
	if err := ch.store.Record(ctx, c); err != nil {
		return false, ch.fail(span, err)
	}
	ch.metrics.sent()
	ch.logger.InfoContext(ctx, "cart sent",
		"cart_id", string(c.ID),
		"wants_response", wantsResponse,
		"key_set", key != "")

	if !wantsResponse {
		return true, nil
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return true, nil
	}
	ch.wg.Add(1)
	ch.mu.Unlock()

	go ch.review(trace.ContextWithSpanContext(ch.ctx, span.SpanContext()), Submission{Key: key, Cart: c.Clone()})
	return true, nil
}

// review asks the decision source about one submission and delivers the answer.
func (ch *Channel) review(ctx context.Context, sub Submission) {
	defer ch.wg.Done()

	if ch.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ch.timeout)
		defer cancel()
	}

	d, err := ch.source.Review(ctx, sub)
	switch {
	case errors.Is(err, ErrNoDecision):
		ch.logger.InfoContext(ctx, "no decision issued, cart remains waiting", "cart_id", string(sub.Cart.ID))
		return
	case err != nil:
		ch.metrics.reviewFailed()
		errutil.LogWarn(ctx, ch.logger, "cart review failed",
			oops.Code("REVIEW_FAILED").With("cart_id", string(sub.Cart.ID)).Wrap(err))
		return
	}

	if d.CartID == "" {
		d.CartID = sub.Cart.ID
	}
	if d.CartID != sub.Cart.ID {
		errutil.LogWarn(ctx, ch.logger, "decision discarded",
			oops.Code("DECISION_MISMATCH").
				With("cart_id", string(sub.Cart.ID)).
				With("decision_cart_id", string(d.CartID)).
				Errorf("decision references a different cart"))
		return
	}

	if err := ch.Deliver(ctx, d); err != nil {
		errutil.LogWarn(ctx, ch.logger, "decision not delivered", err)
	}
}

// Deliver records a decision that arrived for a previously sent cart and
// publishes it. It is safe to call from any goroutine at any time after the
// cart was sent. A cart is decided once; later decisions fail with
// CART_ALREADY_DECIDED and publish nothing.
func (ch *Channel) Deliver(ctx context.Context, d cart.Decision) error {
	ctx, span := ch.tracer.Start(ctx, "messaging.Deliver", trace.WithAttributes(
		attribute.String("cart.id", string(d.CartID)),
		attribute.String("cart.approval", d.Approval.String()),
	))
	defer span.End()

	if ch.isClosed() {
		return ch.fail(span, errClosed())
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}
	if err := d.Validate(); err != nil {
		return ch.fail(span, err)
	}

	updated, ok, err := ch.store.Resolve(ctx, d)
	if errors.Is(err, cart.ErrAlreadyDecided) {
		return ch.fail(span, err)
	}
	if err != nil {
		return ch.fail(span, oops.Code("DECISION_RECORD_FAILED").With("cart_id", string(d.CartID)).Wrap(err))
	}
	if !ok {
		return ch.fail(span, oops.Code("CART_NOT_FOUND").
			With("cart_id", string(d.CartID)).
			Errorf("decision for unknown cart"))
	}

	ch.metrics.decision(d)
	ch.logger.InfoContext(ctx, "cart decision received",
		"cart_id", string(d.CartID),
		"approval", d.Approval.String(),
		"responding_user", d.RespondingUser)

	ch.publish(ctx, updated, d)
	return nil
}

// publish hands a decision to every active listener and to the waiters
// registered for its cart.
func (ch *Channel) publish(ctx context.Context, c cart.Cart, d cart.Decision) {
	ch.publishMu.Lock()
	defer ch.publishMu.Unlock()

	ch.mu.Lock()
	subs := slices.Clone(ch.listeners)
	waiters := ch.waiters[d.CartID]
	delete(ch.waiters, d.CartID)
	ch.updateListenerGaugeLocked()
	ch.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			ch.invoking.Store(sub)
			ch.invoke(ctx, sub.listener, c.Clone(), d)
			ch.invoking.Store(nil)
		}
	}
	for _, w := range waiters {
		if w.fired.CompareAndSwap(false, true) {
			w.stop()
			ch.invoke(ctx, w.listener, c.Clone(), d)
		}
	}
}

// invoke runs a listener, containing any panic so one faulty listener
// cannot take down the host.
func (ch *Channel) invoke(ctx context.Context, l Listener, c cart.Cart, d cart.Decision) {
	defer func() {
		if r := recover(); r != nil {
			ch.logger.ErrorContext(ctx, "decision listener panicked",
				"cart_id", string(d.CartID),
				"panic", r)
		}
	}()
	l(ctx, c, d)
}

// Subscribe registers l for every decision published from now on.
// Decisions published before the call are not replayed.
func (ch *Channel) Subscribe(l Listener) *Subscription {
	sub := &Subscription{listener: l}
	sub.active.Store(true)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		sub.active.Store(false)
		return sub
	}
	ch.listeners = append(ch.listeners, sub)
	ch.updateListenerGaugeLocked()
	return sub
}

// Unsubscribe removes sub. When Unsubscribe returns, the listener will not
// be called again, including for decisions that were already in flight.
// It waits for a delivery in progress unless that delivery is the call to
// sub's own listener, so a listener may unsubscribe itself.
func (ch *Channel) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.active.Store(false)

	ch.mu.Lock()
	if i := slices.Index(ch.listeners, sub); i >= 0 {
		ch.listeners = slices.Delete(ch.listeners, i, i+1)
	}
	ch.updateListenerGaugeLocked()
	ch.mu.Unlock()

	if ch.invoking.Load() == sub {
		return
	}
	ch.publishMu.Lock()
	//nolint:staticcheck // empty critical section waits out an in-progress publish
	ch.publishMu.Unlock()
}

// Await calls l at most once, with the first decision published for id.
// The registration ends on delivery, when cancel is called, or when ctx is
// done, whichever happens first.
func (ch *Channel) Await(ctx context.Context, id cart.ID, l Listener) (cancel func()) {
	w := &waiter{listener: l}
	remove := func() {
		if w.fired.CompareAndSwap(false, true) {
			ch.removeWaiter(id, w)
		}
	}
	w.stop = context.AfterFunc(ctx, remove)

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		w.stop()
		return func() {}
	}
	ch.waiters[id] = append(ch.waiters[id], w)
	ch.updateListenerGaugeLocked()
	ch.mu.Unlock()

	// ctx may have ended before the waiter was visible to remove.
	if w.fired.Load() {
		ch.removeWaiter(id, w)
	}

	return func() {
		w.stop()
		remove()
	}
}

func (ch *Channel) removeWaiter(id cart.ID, w *waiter) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ws := ch.waiters[id]
	if i := slices.Index(ws, w); i >= 0 {
		ws = slices.Delete(ws, i, i+1)
	}
	if len(ws) == 0 {
		delete(ch.waiters, id)
	} else {
		ch.waiters[id] = ws
	}
	ch.updateListenerGaugeLocked()
}

// Listeners returns the number of registered listeners and pending waiters.
func (ch *Channel) Listeners() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.listenerCountLocked()
}

func (ch *Channel) listenerCountLocked() int {
	n := len(ch.listeners)
	for _, ws := range ch.waiters {
		n += len(ws)
	}
	return n
}

func (ch *Channel) updateListenerGaugeLocked() {
	ch.metrics.listeners(ch.listenerCountLocked())
}

// Bump asks the backing service to give a stored cart attention again.
// found is false when no cart with id was ever sent; that is not an error.
func (ch *Channel) Bump(ctx context.Context, id cart.ID) (found bool, err error) {
	return ch.signal(ctx, SignalBump, id)
}

// Expire tells the backing service a stored cart is no longer relevant.
// The record stays in the store and a decision already in flight is still
// published. found is false when the cart is unknown.
func (ch *Channel) Expire(ctx context.Context, id cart.ID) (found bool, err error) {
	return ch.signal(ctx, SignalExpire, id)
}

func (ch *Channel) signal(ctx context.Context, kind SignalKind, id cart.ID) (bool, error) {
	ctx, span := ch.tracer.Start(ctx, "messaging."+string(kind), trace.WithAttributes(
		attribute.String("cart.id", string(id)),
	))
	defer span.End()

	c, ok, err := ch.store.Find(ctx, id)
	if err != nil {
		return false, ch.fail(span, oops.Code("CART_LOOKUP_FAILED").With("cart_id", string(id)).Wrap(err))
	}
	ch.metrics.signal(kind, ok)
	if !ok {
		ch.logger.InfoContext(ctx, "cart not found, signal skipped",
			"signal", string(kind),
			"cart_id", string(id))
		return false, nil
	}

	ch.signals.RecordSignal(ctx, Signal{Kind: kind, Cart: &c, At: time.Now()})
	ch.logger.InfoContext(ctx, "cart "+string(kind)+" signaled",
		"cart_id", string(id),
		"is_waiting", c.IsWaiting)
	return true, nil
}

// SendTest emits a payload-less signal so an operator can check that the
// channel is reachable.
func (ch *Channel) SendTest(ctx context.Context) error {
	if ch.isClosed() {
		return errClosed()
	}
	ch.metrics.signal(SignalTest, true)
	ch.signals.RecordSignal(ctx, Signal{Kind: SignalTest, At: time.Now()})
	ch.logger.InfoContext(ctx, "test message sent")
	return nil
}

// Close stops accepting sends, cancels reviews still in progress, drops
// every listener, and waits for background work to finish or ctx to end.
func (ch *Channel) Close(ctx context.Context) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	for _, sub := range ch.listeners {
		sub.active.Store(false)
	}
	ch.listeners = nil
	for _, ws := range ch.waiters {
		for _, w := range ws {
			w.fired.Store(true)
			w.stop()
		}
	}
	ch.waiters = make(map[cart.ID][]*waiter)
	ch.updateListenerGaugeLocked()
	ch.mu.Unlock()

	ch.cancel()

	done := make(chan struct{})
	go func() {
		ch.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("CHANNEL_CLOSE_TIMEOUT").Wrap(ctx.Err())
	}
}

func (ch *Channel) isClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

func (ch *Channel) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func errClosed() error {
	return oops.Code("CHANNEL_CLOSED").Errorf("channel is closed")
}
