// Package connection implements one simulated request/response exchange. A
// Connection is created open by a backend, handed to the test harness, and
// resolved exactly once through Respond or Error; whoever holds the response
// stream observes the outcome.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"

	"github.com/webmock/transport/broadcast"
	"github.com/webmock/transport/message"
)

// ErrAlreadyResolved is returned by Respond when the connection already
// reached a terminal state.
var ErrAlreadyResolved = errors.New("connection already resolved")

const (
	stateOpen            = "open"
	stateHeadersReceived = "headers_received"
	stateLoading         = "loading"
	stateDone            = "done"
	stateCancelled       = "cancelled"
)

const (
	eventRespond = "respond"
	eventError   = "error"
	eventCancel  = "cancel"
	eventForce   = "force"
)

var stateOf = map[string]ReadyState{
	stateOpen:            StateOpen,
	stateHeadersReceived: StateHeadersReceived,
	stateLoading:         StateLoading,
	stateDone:            StateDone,
	stateCancelled:       StateCancelled,
}

// newLifecycleFSM builds the ready-state machine. Events: respond, cancel,
// error, force. error and force may fire from cancelled; nothing transitions
// out of done.
func newLifecycleFSM() *fsm.FSM {
	progressive := []string{stateOpen, stateHeadersReceived, stateLoading}
	withCancelled := append([]string{stateCancelled}, progressive...)
	return fsm.NewFSM(
		stateOpen,
		fsm.Events{
			{Name: eventRespond, Src: progressive, Dst: stateDone},
			{Name: eventCancel, Src: progressive, Dst: stateCancelled},
			{Name: eventError, Src: withCancelled, Dst: stateDone},
			{Name: eventForce, Src: withCancelled, Dst: stateDone},
		},
		nil,
	)
}

// Connection is one mocked exchange. It owns its request for its lifetime and
// a response stream that delivers exactly one terminal event.
type Connection struct {
	id      uuid.UUID
	request *message.Request

	response *broadcast.Stream[*message.Response]

	mu        sync.Mutex
	lifecycle *fsm.FSM
}

// New creates an open connection for req. req must be non-nil; backends
// validate it before calling.
func New(req *message.Request) *Connection {
	return &Connection{
		id:        uuid.New(),
		request:   req,
		response:  broadcast.NewStream[*message.Response](),
		lifecycle: newLifecycleFSM(),
	}
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string {
	return c.id.String()
}

// Request returns the request descriptor this connection was created for.
func (c *Connection) Request() *message.Request {
	return c.request
}

// Response returns the stream that delivers the connection's outcome.
// Subscribe before resolving: delivery is synchronous and not replayed.
func (c *Connection) Response() *broadcast.Stream[*message.Response] {
	return c.response
}

// State returns the current ready state.
func (c *Connection) State() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stateOf[c.lifecycle.Current()]
}

// Respond resolves the connection with resp: the state becomes done, resp is
// published on the response stream, and the stream completes. A connection
// can be resolved this way at most once; calling Respond on a done or
// cancelled connection returns ErrAlreadyResolved.
func (c *Connection) Respond(resp *message.Response) error {
	c.mu.Lock()
	if cur := stateOf[c.lifecycle.Current()]; cur.Terminal() {
		c.mu.Unlock()
		return fmt.Errorf("%w: connection %s is %s", ErrAlreadyResolved, c.id, cur)
	}
	_ = c.lifecycle.Event(context.Background(), eventRespond)
	c.mu.Unlock()

	log.WithField("caller", "transport/connection").WithField("conn", c.id).Debug("connection resolved")
	c.response.Publish(resp)
	c.response.Close()
	return nil
}

// Error forces the connection to done from any prior state, cancelled
// included, and delivers err as the error signal on the response stream
// before completing it. Late and duplicate errors occur on real transports,
// so there is no precondition; if the stream already completed, the state is
// forced but nothing more is delivered.
func (c *Connection) Error(err error) {
	c.mu.Lock()
	_ = c.lifecycle.Event(context.Background(), eventError)
	c.mu.Unlock()

	log.WithField("caller", "transport/connection").WithField("conn", c.id).WithError(err).Debug("connection errored")
	c.response.Fail(err)
	c.response.Close()
}

// Cancel moves the connection to cancelled unless it is already done. The
// response stream is left untouched. Idempotent.
func (c *Connection) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle.Is(stateDone) {
		return
	}
	_ = c.lifecycle.Event(context.Background(), eventCancel)
}

// PartialDownload is reserved for progressive-download notifications. It is
// deliberately inert: it mutates neither the ready state nor the response
// stream. Declared so callers can already program against the full surface.
func (c *Connection) PartialDownload(resp *message.Response) {}

// MarkDone forces the state to done without publishing anything on the
// response stream. This bypasses the Respond/Error path and exists for bulk
// resolution by the backend.
func (c *Connection) MarkDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.lifecycle.Event(context.Background(), eventForce)
}
