package actor

import (
	"context"
	"sync"
)

// Cell is a latest-value broadcast: a single slot that every Set overwrites.
// A new subscriber's first Next returns the current value immediately, and a
// subscriber that polls infrequently observes only the most recent value;
// intermediate values coalesce silently. There is no history.
//
// One writer (the controller), up to MaxSubscribers readers.
type Cell[T any] struct {
	mu     sync.Mutex
	val    T
	seq    uint64
	closed bool
	subs   map[*CellSub[T]]struct{}
}

// NewCell creates a cell seeded with the initial value, so the first poll of
// any subscription never blocks waiting for a change.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		val:  initial,
		seq:  1,
		subs: make(map[*CellSub[T]]struct{}),
	}
}

// Set overwrites the slot and wakes every subscriber.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.val = v
	c.seq++
	for s := range c.subs {
		s.wake()
	}
}

// Subscribe registers a new observer. Fails with ErrSubscriberLimit beyond
// MaxSubscribers concurrent subscriptions.
func (c *Cell[T]) Subscribe() (*CellSub[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if len(c.subs) >= MaxSubscribers {
		return nil, ErrSubscriberLimit
	}

	s := &CellSub[T]{cell: c, notify: make(chan struct{}, 1)}
	c.subs[s] = struct{}{}
	s.wake() // the seeded value is immediately available
	return s, nil
}

// Close terminates every subscription. Subscribers drain the current value
// if they have not seen it, then receive ErrClosed.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for s := range c.subs {
		s.wake()
	}
}

// CellSub is one subscription to a Cell. Not safe for concurrent use by
// multiple goroutines.
type CellSub[T any] struct {
	cell   *Cell[T]
	seen   uint64
	notify chan struct{}
}

func (s *CellSub[T]) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the latest value not yet observed by this subscription,
// blocking until one exists. It returns ErrClosed once the controller has
// terminated and the final value was observed, and the context error on
// cancellation.
func (s *CellSub[T]) Next(ctx context.Context) (T, error) {
	for {
		s.cell.mu.Lock()
		if s.seen < s.cell.seq {
			s.seen = s.cell.seq
			v := s.cell.val
			s.cell.mu.Unlock()
			return v, nil
		}
		closed := s.cell.closed
		s.cell.mu.Unlock()

		var zero T
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close unsubscribes, freeing the observer slot.
func (s *CellSub[T]) Close() {
	s.cell.mu.Lock()
	defer s.cell.mu.Unlock()
	delete(s.cell.subs, s)
}
