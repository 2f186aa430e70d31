// Package backend provides the transport backend contract and a mock
// implementation that creates connections without performing network I/O.
// Tests subscribe to the mock's connection stream and resolve each connection
// by hand, driving the same response-handling path a real backend would.
package backend

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/webmock/transport/broadcast"
	"github.com/webmock/transport/connection"
	"github.com/webmock/transport/message"
)

// ErrInvalidRequest is returned by CreateConnection for a nil or wrong-typed
// request descriptor. It signals a defect in the calling code, not a runtime
// condition to recover from.
var ErrInvalidRequest = errors.New("invalid request descriptor")

// ErrPendingConnections is returned by VerifyNoPendingRequests when
// unresolved connections were observed.
var ErrPendingConnections = errors.New("pending connections remain")

// Backend issues connections for request descriptors. Both the mock and a
// real transport satisfy it; req must be a *message.Request. The argument is
// untyped so an implementation can reject foreign descriptor types the same
// way it rejects nil.
type Backend interface {
	CreateConnection(req any) (*connection.Connection, error)
}

// MockBackend manufactures connections, remembers every one of them, and
// offers verification and bulk-resolution utilities for tests. Each instance
// is fully isolated; parallel tests use one MockBackend each.
type MockBackend struct {
	conns   *broadcast.Stream[*connection.Connection]
	pending *broadcast.Stream[*connection.Connection]

	mu           sync.Mutex
	history      []*connection.Connection
	pendingCount int
}

var _ Backend = (*MockBackend)(nil)

// New creates a MockBackend. The connection stream feeds the history through
// an attached listener, so everything ever published on it appears there in
// order. The pending stream is wired and counted but never fed; see
// VerifyNoPendingRequests.
func New() *MockBackend {
	b := &MockBackend{
		conns:   broadcast.NewStream[*connection.Connection](),
		pending: broadcast.NewStream[*connection.Connection](),
	}
	b.conns.Subscribe(broadcast.Listener[*connection.Connection]{
		OnValue: func(c *connection.Connection) {
			b.mu.Lock()
			b.history = append(b.history, c)
			b.mu.Unlock()
		},
	})
	b.pending.Subscribe(broadcast.Listener[*connection.Connection]{
		OnValue: func(c *connection.Connection) {
			b.mu.Lock()
			b.pendingCount++
			b.mu.Unlock()
		},
	})
	return b
}

// CreateConnection creates an open connection for req, announces it on the
// connection stream, and returns it. The returned connection is the same
// instance subscribers just observed. req must be a non-nil
// *message.Request; anything else returns ErrInvalidRequest naming the value.
func (b *MockBackend) CreateConnection(req any) (*connection.Connection, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: got nil", ErrInvalidRequest)
	}
	r, ok := req.(*message.Request)
	if !ok {
		return nil, fmt.Errorf("%w: got %T (%v), want *message.Request", ErrInvalidRequest, req, req)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: got nil *message.Request", ErrInvalidRequest)
	}

	c := connection.New(r)
	log.WithField("caller", "transport/backend").
		WithField("conn", c.ID()).
		WithField("url", r.URL).
		Debug("connection created")
	b.conns.Publish(c)
	return c, nil
}

// ConnectionStream announces every connection at the moment of its creation.
// Subscribe before calling CreateConnection; past connections are not
// replayed (Connections is the replay).
func (b *MockBackend) ConnectionStream() *broadcast.Stream[*connection.Connection] {
	return b.conns
}

// PendingStream is meant to announce connections whose state has not reached
// a terminal value. Nothing feeds it: the filter that would populate it from
// the history never shipped, and resolving connections does not report back
// to the backend. Exposed so subscribers keep working when it comes alive.
func (b *MockBackend) PendingStream() *broadcast.Stream[*connection.Connection] {
	return b.pending
}

// Connections returns every connection ever created, in creation order.
func (b *MockBackend) Connections() []*connection.Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*connection.Connection, len(b.history))
	copy(out, b.history)
	return out
}

// VerifyNoPendingRequests fails with ErrPendingConnections if any connection
// was observed on the pending stream. Intended to catch mock responses a test
// forgot to provide. With the pending stream unfed it always passes; the
// check is kept so the count is enforced the moment the stream is fed.
func (b *MockBackend) VerifyNoPendingRequests() error {
	b.mu.Lock()
	n := b.pendingCount
	b.mu.Unlock()
	if n > 0 {
		return fmt.Errorf("%w: %d outstanding", ErrPendingConnections, n)
	}
	return nil
}

// ResolveAllConnections forces every connection ever created into the done
// state, bypassing Respond and Error: nothing is published on the individual
// response streams. Use it to silence VerifyNoPendingRequests when leftover
// connections are expected and irrelevant to the test.
func (b *MockBackend) ResolveAllConnections() {
	for _, c := range b.Connections() {
		c.MarkDone()
	}
	log.WithField("caller", "transport/backend").Debug("all connections resolved")
}
