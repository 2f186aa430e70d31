package connection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmock/transport/internal/streamtest"
	"github.com/webmock/transport/message"
)

func TestNew(t *testing.T) {
	req := message.NewRequest("GET", "data.json")
	c := New(req)

	require.NotNil(t, c)
	assert.Same(t, req, c.Request())
	assert.Equal(t, StateOpen, c.State())
	assert.NotNil(t, c.Response())
	assert.False(t, c.Response().Closed())
	assert.NotEmpty(t, c.ID())
}

func TestRespond_DeliversResponseAndCompletes(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	rec := streamtest.NewRecorder[*message.Response]()
	c.Response().Subscribe(rec.Listener())

	resp := message.NewResponse(200, []byte("awesome"))
	err := c.Respond(resp)

	require.NoError(t, err)
	assert.Equal(t, StateDone, c.State())
	require.Len(t, rec.Values(), 1)
	assert.Equal(t, []byte("awesome"), rec.Values()[0].Body)
	assert.Equal(t, 1, rec.DoneCount())
	assert.Empty(t, rec.Errors())
}

func TestRespond_SecondCallFails(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	require.NoError(t, c.Respond(message.NewResponse(200, nil)))

	err := c.Respond(message.NewResponse(200, nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Contains(t, err.Error(), c.ID())
}

func TestRespond_AfterCancelFails(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	c.Cancel()

	err := c.Respond(message.NewResponse(200, nil))

	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, StateCancelled, c.State())
}

func TestError_DeliversErrorSignal(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	rec := streamtest.NewRecorder[*message.Response]()
	c.Response().Subscribe(rec.Listener())

	wantErr := errors.New("connection refused")
	c.Error(wantErr)

	assert.Equal(t, StateDone, c.State())
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, wantErr, rec.Errors()[0])
	assert.Equal(t, 1, rec.DoneCount())
	assert.Empty(t, rec.Values())
}

func TestError_OverridesCancelled(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	rec := streamtest.NewRecorder[*message.Response]()
	c.Response().Subscribe(rec.Listener())

	c.Cancel()
	require.Equal(t, StateCancelled, c.State())

	c.Error(errors.New("late failure"))

	assert.Equal(t, StateDone, c.State())
	assert.Len(t, rec.Errors(), 1)
	assert.Equal(t, 1, rec.DoneCount())
}

func TestError_AfterRespondLeavesStreamAlone(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	rec := streamtest.NewRecorder[*message.Response]()
	c.Response().Subscribe(rec.Listener())

	require.NoError(t, c.Respond(message.NewResponse(204, nil)))
	c.Error(errors.New("too late"))

	assert.Equal(t, StateDone, c.State())
	assert.Len(t, rec.Values(), 1)
	assert.Empty(t, rec.Errors())
	assert.Equal(t, 1, rec.DoneCount())
}

func TestCancel_Idempotent(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))

	c.Cancel()
	c.Cancel()

	assert.Equal(t, StateCancelled, c.State())
	assert.False(t, c.Response().Closed())
}

func TestCancel_NoOpWhenDone(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	require.NoError(t, c.Respond(message.NewResponse(200, nil)))

	c.Cancel()

	assert.Equal(t, StateDone, c.State())
}

func TestPartialDownload_IsInert(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	rec := streamtest.NewRecorder[*message.Response]()
	c.Response().Subscribe(rec.Listener())

	c.PartialDownload(message.NewResponse(200, []byte("chunk")))

	assert.Equal(t, StateOpen, c.State())
	assert.Empty(t, rec.Values())
	assert.Empty(t, rec.Errors())
	assert.Zero(t, rec.DoneCount())
	assert.False(t, c.Response().Closed())

	// the connection is still resolvable afterwards
	require.NoError(t, c.Respond(message.NewResponse(200, nil)))
}

func TestMarkDone_SkipsResponseStream(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	rec := streamtest.NewRecorder[*message.Response]()
	c.Response().Subscribe(rec.Listener())

	c.MarkDone()

	assert.Equal(t, StateDone, c.State())
	assert.Empty(t, rec.Values())
	assert.Empty(t, rec.Errors())
	assert.Zero(t, rec.DoneCount())
}

func TestMarkDone_FromCancelled(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	c.Cancel()

	c.MarkDone()

	assert.Equal(t, StateDone, c.State())
}

func TestResponse_LateSubscriberMissesOutcome(t *testing.T) {
	c := New(message.NewRequest("GET", "data.json"))
	require.NoError(t, c.Respond(message.NewResponse(200, []byte("gone"))))

	rec := streamtest.NewRecorder[*message.Response]()
	c.Response().Subscribe(rec.Listener())

	assert.Empty(t, rec.Values())
	assert.Zero(t, rec.DoneCount())
}
