package worker

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/transport"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func startDaemon(t *testing.T, d *Daemon) (host string, port int) {
	t.Helper()
	srv, err := transport.NewServer(d.Accept, testSecret)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	addr := strings.TrimPrefix(ts.URL, "http://")
	parts := strings.Split(addr, ":")
	p, perr := strconv.Atoi(parts[len(parts)-1])
	require.NoError(t, perr)
	return "127.0.0.1", p
}

func TestDaemonHandshakeAndCapacity(t *testing.T) {
	d := NewDaemon(4, false)
	host, port := startDaemon(t, d)

	ch, err := transport.Dial(host, port, testSecret)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Send(transport.NewHandshake("/tmp", "1.0.0", nil)))

	resp, err := ch.Receive()
	require.NoError(t, err)
	require.Equal(t, transport.EventHandshakeResponse, resp.Event)
	require.Nil(t, resp.HandshakeResponse.Error)

	capMsg, err := ch.Receive()
	require.NoError(t, err)
	require.Equal(t, transport.EventCapacity, capMsg.Event)
	require.Equal(t, 4, capMsg.Capacity.Threads)
}

func TestDaemonRunsDispatchedTask(t *testing.T) {
	d := NewDaemon(1, false)
	host, port := startDaemon(t, d)

	ch, err := transport.Dial(host, port, testSecret)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Send(transport.NewHandshake("/tmp", "1.0.0", nil)))
	_, err = ch.Receive()
	require.NoError(t, err)
	_, err = ch.Receive()
	require.NoError(t, err)

	cmd, err := command.NewAtomicCmd([]command.Arg{command.Lit("true")})
	require.NoError(t, err)
	desc, err := command.Describe(cmd, 1, "noop", 1, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ch.Send(transport.NewTaskStart(desc, t.TempDir())))

	done, err := ch.Receive()
	require.NoError(t, err)
	require.Equal(t, transport.EventTaskDone, done.Event)
	require.Equal(t, 1, done.TaskDone.TaskID)
	require.Nil(t, done.TaskDone.Error)
}

func TestDaemonReportsNonZeroExit(t *testing.T) {
	d := NewDaemon(1, false)
	host, port := startDaemon(t, d)

	ch, err := transport.Dial(host, port, testSecret)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Send(transport.NewHandshake("/tmp", "1.0.0", nil)))
	_, err = ch.Receive()
	require.NoError(t, err)
	_, err = ch.Receive()
	require.NoError(t, err)

	cmd, err := command.NewAtomicCmd([]command.Arg{command.Lit("false")})
	require.NoError(t, err)
	desc, err := command.Describe(cmd, 2, "noop", 1, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ch.Send(transport.NewTaskStart(desc, t.TempDir())))

	var done transport.Message
	for i := 0; i < 2; i++ {
		done, err = ch.Receive()
		require.NoError(t, err)
		if done.Event == transport.EventTaskDone {
			break
		}
	}
	require.Equal(t, transport.EventTaskDone, done.Event)
	require.Equal(t, 2, done.TaskDone.TaskID)
	require.NotNil(t, done.TaskDone.Error)
}

func TestDaemonShutdownTerminatesConnection(t *testing.T) {
	d := NewDaemon(1, false)
	host, port := startDaemon(t, d)

	ch, err := transport.Dial(host, port, testSecret)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Send(transport.NewHandshake("/tmp", "1.0.0", nil)))
	_, err = ch.Receive()
	require.NoError(t, err)
	_, err = ch.Receive()
	require.NoError(t, err)

	require.NoError(t, ch.Send(transport.NewShutdown()))

	ch.Close()
	time.Sleep(10 * time.Millisecond)
}
