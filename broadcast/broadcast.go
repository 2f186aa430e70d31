// Package broadcast provides a multicast notification stream. Events are
// delivered synchronously, in registration order, to the listeners subscribed
// at the moment of the call; there is no buffering or replay, so a late
// subscriber misses past events.
package broadcast

import "sync"

// Listener receives events from a Stream. Nil callbacks are skipped.
type Listener[T any] struct {
	OnValue func(T)
	OnError func(error)
	OnDone  func()
}

// Stream delivers values, errors and a single completion signal to its
// listeners. A Stream is safe for use from multiple goroutines, but delivery
// itself is synchronous within the publishing call.
type Stream[T any] struct {
	mu        sync.Mutex
	listeners []*Subscription[T]
	closed    bool
}

// Subscription is the handle to a registered Listener.
type Subscription[T any] struct {
	stream   *Stream[T]
	listener Listener[T]
}

// NewStream creates an empty, open stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{}
}

// Subscribe registers l and returns its cancellation handle. Listeners are
// invoked in registration order.
func (s *Stream[T]) Subscribe(l Listener[T]) *Subscription[T] {
	sub := &Subscription[T]{stream: s, listener: l}
	s.mu.Lock()
	s.listeners = append(s.listeners, sub)
	s.mu.Unlock()
	return sub
}

// Publish delivers v to all currently registered listeners. No-op after Close.
func (s *Stream[T]) Publish(v T) {
	for _, sub := range s.snapshot() {
		if sub.listener.OnValue != nil {
			sub.listener.OnValue(v)
		}
	}
}

// Fail delivers err as an error signal to all currently registered listeners.
// No-op after Close.
func (s *Stream[T]) Fail(err error) {
	for _, sub := range s.snapshot() {
		if sub.listener.OnError != nil {
			sub.listener.OnError(err)
		}
	}
}

// Close completes the stream, notifying OnDone exactly once. Further Publish,
// Fail and Close calls are no-ops.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]*Subscription[T], len(s.listeners))
	copy(subs, s.listeners)
	s.listeners = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.listener.OnDone != nil {
			sub.listener.OnDone()
		}
	}
}

// Closed reports whether the stream has completed.
func (s *Stream[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Cancel detaches the listener; it observes no further events. Safe to call
// more than once.
func (sub *Subscription[T]) Cancel() {
	s := sub.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.listeners {
		if cur == sub {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// snapshot copies the listener list so delivery runs without the lock held,
// letting listeners call back into the stream.
func (s *Stream[T]) snapshot() []*Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	out := make([]*Subscription[T], len(s.listeners))
	copy(out, s.listeners)
	return out
}
