//go:build linux

package gateway

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func targetWithIP(ip string) TargetAddress {
	return TargetAddress{IP: net.ParseIP(ip), Port: "5432"}
}

func newTestWorker(t *testing.T) (*Worker, *PrimaryState) {
	t.Helper()
	primary := NewPrimaryState()
	metrics := NewMetrics(prometheus.NewRegistry())
	w, err := NewWorker(0, metrics, primary, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.poller.Close() })
	return w, primary
}

func TestWorkerForwardsBytesBothWays(t *testing.T) {
	w, primary := newTestWorker(t)

	clientPair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	backendPair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(clientPair[1])
		unix.Close(backendPair[1])
	})

	c, err := newConnection(clientPair[0], backendPair[0], primary.Epoch(), StateEstablished, "test-conn")
	require.NoError(t, err)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() { w.Run(stop); close(done) }()
	t.Cleanup(func() {
		close(stop)
		<-done
	})

	w.Assign(c)

	payload := []byte("SELECT 1")
	_, err = unix.Write(clientPair[1], payload)
	require.NoError(t, err)

	got := make([]byte, len(payload))
	require.Eventually(t, func() bool {
		n, _ := unix.Read(backendPair[1], got)
		return n == len(payload)
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, payload, got)

	reply := []byte("1 row")
	_, err = unix.Write(backendPair[1], reply)
	require.NoError(t, err)

	gotReply := make([]byte, len(reply))
	require.Eventually(t, func() bool {
		n, _ := unix.Read(clientPair[1], gotReply)
		return n == len(reply)
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, reply, gotReply)
}

func TestWorkerTearsDownOnEpochMismatch(t *testing.T) {
	w, primary := newTestWorker(t)

	clientPair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	backendPair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(clientPair[1])
		unix.Close(backendPair[1])
	})

	staleEpoch := primary.Epoch()
	c, err := newConnection(clientPair[0], backendPair[0], staleEpoch, StateEstablished, "stale-conn")
	require.NoError(t, err)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() { w.Run(stop); close(done) }()
	t.Cleanup(func() {
		close(stop)
		<-done
	})

	w.Assign(c)
	require.Eventually(t, func() bool { return w.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	primary.Update(TargetAddress{}, -1)
	primary.Update(targetWithIP("10.0.0.9"), 0)

	_, err = unix.Write(clientPair[1], []byte("trigger"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return c.Closed() }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return w.ActiveConnections() == 0 }, time.Second, 10*time.Millisecond)
}
