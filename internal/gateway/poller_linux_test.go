//go:build linux

package gateway

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/require"
)

func TestPollerReportsReadableFD(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	pair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(pair[0]); unix.Close(pair[1]) })

	fakeConn := &Connection{ClientFD: pair[0]}
	require.NoError(t, p.Register(pair[0], fakeConn, true, false))

	_, err = unix.Write(pair[1], []byte("x"))
	require.NoError(t, err)

	batch, err := p.Wait(1000, nil)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, pair[0], batch[0].FD)
	require.True(t, batch[0].Readable)
	require.Same(t, fakeConn, batch[0].Conn)
}

func TestInvalidateConnNullsLaterDuplicateEntries(t *testing.T) {
	c1 := &Connection{}
	c2 := &Connection{}
	batch := []Event{
		{FD: 1, Conn: c1},
		{FD: 2, Conn: c1},
		{FD: 3, Conn: c2},
	}

	InvalidateConn(batch, 1, c1)

	require.Equal(t, c1, batch[0].Conn)
	require.Nil(t, batch[1].Conn)
	require.Equal(t, c2, batch[2].Conn)
}
