// Package streamtest provides a recording broadcast listener for tests in
// backend, connection, client and script.
package streamtest

import (
	"sync"

	"github.com/webmock/transport/broadcast"
)

// Recorder captures everything a broadcast stream delivers to it.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
	errs   []error
	done   int
}

// NewRecorder creates an empty recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// Listener returns the listener to subscribe with.
func (r *Recorder[T]) Listener() broadcast.Listener[T] {
	return broadcast.Listener[T]{
		OnValue: func(v T) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.values = append(r.values, v)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
		OnDone: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.done++
		},
	}
}

// Values returns the recorded values in delivery order.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Errors returns the recorded error signals in delivery order.
func (r *Recorder[T]) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// DoneCount returns how many completion signals were observed.
func (r *Recorder[T]) DoneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
