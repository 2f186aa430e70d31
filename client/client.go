// Package client issues requests through a transport backend and waits for
// the outcome. It is the caller side of the exchange: the backend decides how
// the connection resolves, the client only observes the response stream.
package client

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/webmock/transport/backend"
	"github.com/webmock/transport/broadcast"
	"github.com/webmock/transport/message"
)

// Client issues requests over any Backend implementation.
type Client struct {
	backend backend.Backend
}

// New creates a client on top of b.
func New(b backend.Backend) *Client {
	return &Client{backend: b}
}

type outcome struct {
	resp *message.Response
	err  error
}

// Do creates a connection for req and blocks until it resolves or ctx is
// done. Resolution must happen after Do has subscribed to the response
// stream, i.e. from another goroutine: delivery is synchronous and not
// replayed, so a connection resolved from inside a connection-stream listener
// is never observed here. On ctx cancellation the connection is cancelled.
func (c *Client) Do(ctx context.Context, req *message.Request) (*message.Response, error) {
	conn, err := c.backend.CreateConnection(req)
	if err != nil {
		return nil, err
	}

	outcomeCh := make(chan outcome, 1)
	sub := conn.Response().Subscribe(broadcast.Listener[*message.Response]{
		OnValue: func(resp *message.Response) {
			outcomeCh <- outcome{resp: resp}
		},
		OnError: func(err error) {
			outcomeCh <- outcome{err: err}
		},
	})
	defer sub.Cancel()

	select {
	case <-ctx.Done():
		conn.Cancel()
		log.WithField("caller", "transport/client").WithField("conn", conn.ID()).Debug("request cancelled")
		return nil, ctx.Err()
	case out := <-outcomeCh:
		if out.err != nil {
			return nil, out.err
		}
		if out.resp == nil {
			return nil, errors.New("connection completed without a response")
		}
		return out.resp, nil
	}
}
