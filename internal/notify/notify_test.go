package notify

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	calls  [][]string
	data   []map[string]string
	result Result
	err    error
	panics bool
}

func (m *mockTransport) MulticastSend(_ context.Context, tokens []string, data map[string]string) (Result, error) {
	m.calls = append(m.calls, tokens)
	m.data = append(m.data, data)
	if m.panics {
		panic("transport exploded")
	}
	return m.result, m.err
}

func TestSendEmptyTokens(t *testing.T) {
	mt := &mockTransport{result: Result{SuccessCount: 9}}
	d := NewDispatcher(mt, nil)

	res := d.Send(context.Background(), nil, map[string]any{"a": "b"})
	assert.Equal(t, Result{}, res)
	assert.Empty(t, mt.calls, "transport must not be called")

	res = d.Send(context.Background(), []string{}, nil)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, mt.calls)
}

func TestSendStringifiesPayload(t *testing.T) {
	mt := &mockTransport{result: Result{SuccessCount: 2}}
	d := NewDispatcher(mt, nil)

	var missing *string
	res := d.Send(context.Background(), []string{"t1", "t2"}, map[string]any{
		"senderId":    "alice",
		"senderPhoto": nil,
		"nickname":    missing,
		"count":       3.0,
		"ratio":       0.25,
		"flag":        true,
		"n":           7,
	})

	assert.Equal(t, Result{SuccessCount: 2}, res)
	require.Len(t, mt.data, 1)
	assert.Equal(t, map[string]string{
		"senderId":    "alice",
		"senderPhoto": "",
		"nickname":    "",
		"count":       "3",
		"ratio":       "0.25",
		"flag":        "true",
		"n":           "7",
	}, mt.data[0])
}

func TestSendTransportError(t *testing.T) {
	mt := &mockTransport{err: errors.New("unavailable")}
	d := NewDispatcher(mt, nil)

	res := d.Send(context.Background(), []string{"t1", "t2", "t3"}, nil)
	assert.Equal(t, Result{FailureCount: 3}, res)
}

func TestSendTransportPanic(t *testing.T) {
	mt := &mockTransport{panics: true}
	d := NewDispatcher(mt, nil)

	var res Result
	assert.NotPanics(t, func() {
		res = d.Send(context.Background(), []string{"t1"}, nil)
	})
	assert.Equal(t, Result{FailureCount: 1}, res)
}

func TestLogTransport(t *testing.T) {
	res, err := NewLogTransport(nil).MulticastSend(context.Background(), []string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{SuccessCount: 2}, res)
}

type fakeMulticaster struct {
	batches [][]string
	failAt  int
}

func (f *fakeMulticaster) SendEachForMulticast(_ context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.batches = append(f.batches, msg.Tokens)
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return nil, errors.New("quota exceeded")
	}
	return &messaging.BatchResponse{SuccessCount: len(msg.Tokens) - 1, FailureCount: 1}, nil
}

func tokens(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "tok"
	}
	return out
}

func TestFCMTransportBatches(t *testing.T) {
	fake := &fakeMulticaster{}
	tr := &FCMTransport{client: fake}

	res, err := tr.MulticastSend(context.Background(), tokens(1201), map[string]string{"type": "text"})
	require.NoError(t, err)
	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 500)
	assert.Len(t, fake.batches[1], 500)
	assert.Len(t, fake.batches[2], 201)
	assert.Equal(t, Result{SuccessCount: 1198, FailureCount: 3}, res)
}

func TestFCMTransportBatchError(t *testing.T) {
	fake := &fakeMulticaster{failAt: 2}
	tr := &FCMTransport{client: fake}

	res, err := tr.MulticastSend(context.Background(), tokens(700), nil)
	assert.Error(t, err)
	assert.Equal(t, Result{SuccessCount: 499, FailureCount: 1}, res, "first batch counted")
}

func TestDispatcherOverFCMFailure(t *testing.T) {
	d := NewDispatcher(&FCMTransport{client: &fakeMulticaster{failAt: 1}}, nil)

	res := d.Send(context.Background(), tokens(3), map[string]any{"type": "text"})
	assert.Equal(t, Result{FailureCount: 3}, res)
}

func TestDispatcherKeepsSuccessesBeforeBatchError(t *testing.T) {
	fake := &fakeMulticaster{failAt: 2}
	d := NewDispatcher(&FCMTransport{client: fake}, nil)

	res := d.Send(context.Background(), tokens(700), map[string]any{"type": "image"})
	require.Len(t, fake.batches, 2)
	assert.Equal(t, Result{SuccessCount: 499, FailureCount: 201}, res)
	assert.Equal(t, 700, res.SuccessCount+res.FailureCount)
}
