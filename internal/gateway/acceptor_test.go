//go:build linux

package gateway

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestAcceptor(t *testing.T, primary *PrimaryState, workers []*Worker) *Acceptor {
	t.Helper()
	a, err := NewAcceptor("127.0.0.1", "0", workers, primary, NewMetrics(prometheus.NewRegistry()), false, nil)
	require.NoError(t, err)
	go a.Run()
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAcceptorSendsUnavailableWhenNoPrimary(t *testing.T) {
	primary := NewPrimaryState()
	w, _ := newTestWorker(t)
	a := newTestAcceptor(t, primary, []*Worker{w})

	conn, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	want := UnavailableErrorResponse()
	got := make([]byte, len(want))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// The acceptor closes its side right after writing the error frame.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestAcceptorStampsCurrentEpochOnDispatch(t *testing.T) {
	backendLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer backendLn.Close()
	go func() {
		for {
			c, err := backendLn.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	host, port, err := net.SplitHostPort(backendLn.Addr().String())
	require.NoError(t, err)
	target := TargetAddress{IP: net.ParseIP(host), Port: port}

	primary := NewPrimaryState()
	_, epoch := primary.Update(target, 0)

	w, _ := newTestWorker(t)
	a := newTestAcceptor(t, primary, []*Worker{w})

	conn, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case c := <-w.incoming:
		require.Equal(t, epoch, c.EpochBound)
		c.Close()
	case <-time.After(time.Second):
		t.Fatal("connection was never dispatched to the worker")
	}
}
