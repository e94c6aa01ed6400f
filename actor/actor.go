// Package actor is the runtime support library for generated controllers.
//
// It provides the two broadcast primitives a controller's channel set is
// wired with: Cell, a single-slot latest-value broadcast for published
// fields, and Topic, a bounded per-subscriber queue for signals. The two are
// deliberately distinct types; their delivery guarantees differ and neither
// can substitute for the other.
//
// Request/response plumbing needs no support from this package: generated
// code uses plain buffered channels with a single-slot reply per call.
package actor

import (
	"errors"
	"sync/atomic"
)

// MaxSubscribers bounds the concurrent observers of any broadcast.
const MaxSubscribers = 16

var (
	// ErrSubscriberLimit is returned by Subscribe when a broadcast already
	// has MaxSubscribers observers.
	ErrSubscriberLimit = errors.New("actor: subscriber limit reached")

	// ErrClosed is returned by Next once a stream's controller has
	// terminated and all buffered items are drained.
	ErrClosed = errors.New("actor: stream closed")

	// ErrControllerRunning is returned by Run when a dispatch loop is
	// already consuming the controller's channel set. Two loops over one
	// channel set would steal each other's messages.
	ErrControllerRunning = errors.New("actor: dispatch loop already running")
)

// RunGuard enforces the one-dispatch-loop-per-channel-set invariant.
// The zero value is ready to use.
type RunGuard struct {
	running atomic.Bool
}

// Acquire claims the dispatch loop. It fails with ErrControllerRunning if
// another loop holds the claim.
func (g *RunGuard) Acquire() error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrControllerRunning
	}
	return nil
}

// Release returns the claim.
func (g *RunGuard) Release() {
	g.running.Store(false)
}
