//go:build linux

package gateway

import (
	"golang.org/x/sys/unix"
)

// ConnState is a Connection's position in its small state machine.
type ConnState int

const (
	// StateConnecting: the backend socket's non-blocking connect() has not
	// yet completed.
	StateConnecting ConnState = iota
	// StateEstablished: both sides are up; splice data in both directions.
	StateEstablished
)

// Connection is one client<->backend forwarding session: two sockets and
// the pair of pipes splice uses as the zero-copy intermediary. There is no
// analogue of the original's "leak on close" trick here -- once a
// Connection is unreachable from the poller's fd table and the worker's
// event batch, the garbage collector reclaims it. closed exists only to
// serialize teardown against duplicate events for the same fd pair within
// one batch, not to guard against use-after-free.
type Connection struct {
	ClientFD  int
	BackendFD int

	// c2bPipe carries client->backend bytes; b2cPipe carries the reverse.
	// [0] is the read end, [1] is the write end.
	c2bPipe [2]int
	b2cPipe [2]int

	EpochBound uint64
	State      ConnState

	// ID is a per-connection correlation id threaded into every log line
	// for this session's lifetime.
	ID string

	closed bool
}

// newConnection allocates the pipe pairs used as the splice intermediary.
// Both ends are non-blocking and sized to PipeCapacity.
func newConnection(clientFD, backendFD int, epoch uint64, state ConnState, id string) (*Connection, error) {
	c := &Connection{
		ClientFD:   clientFD,
		BackendFD:  backendFD,
		EpochBound: epoch,
		State:      state,
		ID:         id,
	}
	var err error
	if c.c2bPipe, err = makePipe(); err != nil {
		return nil, err
	}
	if c.b2cPipe, err = makePipe(); err != nil {
		unix.Close(c.c2bPipe[0])
		unix.Close(c.c2bPipe[1])
		return nil, err
	}
	return c, nil
}

// Close tears down every fd owned by the Connection. It is idempotent and
// reports whether this call actually performed the teardown (false if
// already closed), mirroring close_conn's boolean return in the original so
// callers can gate their metrics decrement on "did I just close this".
func (c *Connection) Close() bool {
	if c.closed {
		return false
	}
	c.closed = true

	if c.ClientFD >= 0 {
		unix.Close(c.ClientFD)
	}
	if c.BackendFD >= 0 {
		unix.Close(c.BackendFD)
	}
	unix.Close(c.c2bPipe[0])
	unix.Close(c.c2bPipe[1])
	unix.Close(c.b2cPipe[0])
	unix.Close(c.b2cPipe[1])
	return true
}

// Closed reports whether Close has already run.
func (c *Connection) Closed() bool { return c.closed }
