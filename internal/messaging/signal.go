// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/jancy-plugins/namath-provider/internal/cart"
)

// SignalKind identifies an out-of-band notification about a cart.
type SignalKind string

const (
	SignalBump   SignalKind = "bump"
	SignalExpire SignalKind = "expire"
	SignalTest   SignalKind = "test"
)

// Signal is a bump, expire, or test notification forwarded to the backing
// service. Cart is the stored record for bump and expire, nil for test.
type Signal struct {
	Kind SignalKind
	Cart *cart.Cart
	At   time.Time
}

// SignalRecorder receives signals emitted by a Channel.
type SignalRecorder interface {
	RecordSignal(ctx context.Context, sig Signal)
}

// SignalLog keeps every signal in memory.
type SignalLog struct {
	mu      sync.Mutex
	signals []Signal
}

// RecordSignal appends sig.
func (l *SignalLog) RecordSignal(_ context.Context, sig Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.signals = append(l.signals, sig)
}

// Signals returns a copy of the recorded signals in emission order.
func (l *SignalLog) Signals() []Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Signal, len(l.signals))
	copy(out, l.signals)
	return out
}

type discardSignals struct{}

func (discardSignals) RecordSignal(context.Context, Signal) {}
