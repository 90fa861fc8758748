package transport

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func startTestServer(t *testing.T, accept AcceptFunc) (host string, port int) {
	t.Helper()
	srv, err := NewServer(accept, testSecret)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	addr := strings.TrimPrefix(ts.URL, "http://")
	parts := strings.Split(addr, ":")
	p, perr := strconv.Atoi(parts[len(parts)-1])
	require.NoError(t, perr)
	return "127.0.0.1", p
}

func TestHandshakeRoundTrip(t *testing.T) {
	done := make(chan struct{})
	host, port := startTestServer(t, func(ch *Channel) {
		defer close(done)
		msg, err := ch.Receive()
		require.NoError(t, err)
		require.Equal(t, EventHandshake, msg.Event)
		require.NoError(t, ch.Send(NewHandshakeOK()))
	})

	client, err := Dial(host, port, testSecret)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(NewHandshake("/tmp", "1.0.0", nil)))

	resp, err := client.Receive()
	require.NoError(t, err)
	require.Equal(t, EventHandshakeResponse, resp.Event)
	require.Nil(t, resp.HandshakeResponse.Error)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server handler did not complete")
	}
}

func TestTaskDispatchAndCompletion(t *testing.T) {
	host, port := startTestServer(t, func(ch *Channel) {
		msg, err := ch.Receive()
		require.NoError(t, err)
		require.Equal(t, EventTaskStart, msg.Event)
		require.Equal(t, 42, msg.TaskStart.Task.NodeID)
		require.NoError(t, ch.Send(NewTaskDoneOK(42)))
	})

	client, err := Dial(host, port, testSecret)
	require.NoError(t, err)
	defer client.Close()

	task := NewTaskStart(types.TaskDescriptor{NodeID: 42}, "/tmp/run")
	require.NoError(t, client.Send(task))

	resp, err := client.Receive()
	require.NoError(t, err)
	require.Equal(t, EventTaskDone, resp.Event)
	require.Equal(t, 42, resp.TaskDone.TaskID)
	require.Nil(t, resp.TaskDone.Error)
}

func TestDialRejectsWrongSecret(t *testing.T) {
	accepted := false
	host, port := startTestServer(t, func(ch *Channel) {
		accepted = true
		ch.Close()
	})

	_, err := Dial(host, port, []byte("not-the-right-secret-at-all!!!!!"))
	require.Error(t, err)
	require.False(t, accepted, "server should reject the upgrade before handing the connection to accept")
}
