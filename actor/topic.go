package actor

import (
	"context"
	"sync"
)

// Topic is a bounded multi-consumer broadcast queue. Every Publish is
// appended to each subscriber's own queue; when a subscriber's queue is
// already full, its oldest unread item is evicted. Lag is local: a slow
// subscriber never affects the publisher or its peers.
//
// One publisher (the controller), up to MaxSubscribers consumers.
type Topic[T any] struct {
	mu     sync.Mutex
	depth  int
	closed bool
	subs   map[*TopicSub[T]]struct{}
}

// NewTopic creates a topic whose subscribers buffer at most depth unread
// items each.
func NewTopic[T any](depth int) *Topic[T] {
	if depth < 1 {
		depth = 1
	}
	return &Topic[T]{
		depth: depth,
		subs:  make(map[*TopicSub[T]]struct{}),
	}
}

// Publish delivers v to every subscriber, evicting the oldest unread item
// from any queue that is full. It never blocks.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for s := range t.subs {
		if len(s.queue) == t.depth {
			s.queue = s.queue[1:]
		}
		s.queue = append(s.queue, v)
		s.wake()
	}
}

// Subscribe registers a new consumer. Fails with ErrSubscriberLimit beyond
// MaxSubscribers concurrent subscriptions.
func (t *Topic[T]) Subscribe() (*TopicSub[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if len(t.subs) >= MaxSubscribers {
		return nil, ErrSubscriberLimit
	}

	s := &TopicSub[T]{topic: t, notify: make(chan struct{}, 1)}
	t.subs[s] = struct{}{}
	return s, nil
}

// Close terminates the topic. Subscribers drain their queued items, then
// receive ErrClosed.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for s := range t.subs {
		s.wake()
	}
}

// TopicSub is one subscription to a Topic: an ordered stream of published
// items. Not safe for concurrent use by multiple goroutines.
type TopicSub[T any] struct {
	topic  *Topic[T]
	queue  []T
	notify chan struct{}
}

func (s *TopicSub[T]) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the oldest unread item, blocking until one is published. It
// returns ErrClosed once the controller has terminated and the queue is
// drained, and the context error on cancellation.
func (s *TopicSub[T]) Next(ctx context.Context) (T, error) {
	for {
		s.topic.mu.Lock()
		if len(s.queue) > 0 {
			v := s.queue[0]
			s.queue = s.queue[1:]
			s.topic.mu.Unlock()
			return v, nil
		}
		closed := s.topic.closed
		s.topic.mu.Unlock()

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

// Close unsubscribes, freeing the consumer slot and dropping unread items.
func (s *TopicSub[T]) Close() {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()
	delete(s.topic.subs, s)
	s.queue = nil
}
