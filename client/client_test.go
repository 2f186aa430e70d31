package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmock/transport/backend"
	"github.com/webmock/transport/broadcast"
	"github.com/webmock/transport/connection"
	"github.com/webmock/transport/message"
)

func TestDo_Success(t *testing.T) {
	b := backend.New()
	c := New(b)

	// resolve each connection as it appears, from another goroutine, after Do
	// had time to subscribe
	b.ConnectionStream().Subscribe(broadcast.Listener[*connection.Connection]{
		OnValue: func(conn *connection.Connection) {
			go func() {
				time.Sleep(20 * time.Millisecond)
				_ = conn.Respond(message.NewResponse(200, []byte("awesome")))
			}()
		},
	})

	resp, err := c.Do(context.Background(), message.NewRequest("GET", "data.json"))

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []byte("awesome"), resp.Body)
}

func TestDo_Error(t *testing.T) {
	b := backend.New()
	c := New(b)
	wantErr := errors.New("connection refused")

	b.ConnectionStream().Subscribe(broadcast.Listener[*connection.Connection]{
		OnValue: func(conn *connection.Connection) {
			go func() {
				time.Sleep(20 * time.Millisecond)
				conn.Error(wantErr)
			}()
		},
	})

	resp, err := c.Do(context.Background(), message.NewRequest("GET", "data.json"))

	require.Error(t, err)
	assert.Equal(t, wantErr, err)
	assert.Nil(t, resp)
}

func TestDo_InvalidRequest(t *testing.T) {
	b := backend.New()
	c := New(b)

	resp, err := c.Do(context.Background(), nil)

	assert.ErrorIs(t, err, backend.ErrInvalidRequest)
	assert.Nil(t, resp)
}

func TestDo_ContextCancelled(t *testing.T) {
	b := backend.New()
	c := New(b)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	resp, err := c.Do(ctx, message.NewRequest("GET", "data.json"))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
	require.Len(t, b.Connections(), 1)
	assert.Equal(t, connection.StateCancelled, b.Connections()[0].State())
}
