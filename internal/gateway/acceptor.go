//go:build linux

package gateway

import (
	"fmt"
	"net"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/mesudip/pg-gateway/internal/logging"
)

// Acceptor owns the client-facing listener. For each accepted client it
// reads the current primary, dials the backend with a raw non-blocking
// socket (so the connect-in-progress state machine §4.4 applies), and
// hands the resulting Connection to the least-loaded Worker.
type Acceptor struct {
	listener  net.Listener
	workers   []*Worker
	primary   *PrimaryState
	metrics   *Metrics
	keepalive bool
	log       *logging.Logger
}

// NewAcceptor binds a listener on host:port. IPv6 wildcard addresses accept
// IPv4-mapped connections too (IPV6_V6ONLY disabled). net.Listen binds only
// the first address its resolver returns and tries no other; the one
// fallback is explicit: a "::" listener that fails to bind is retried on
// "0.0.0.0".
func NewAcceptor(host, port string, workers []*Worker, primary *PrimaryState, metrics *Metrics, keepalive bool, log *logging.Logger) (*Acceptor, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil && host == "::" {
		ln, err = net.Listen("tcp", net.JoinHostPort("0.0.0.0", port))
	}
	if err != nil {
		return nil, fmt.Errorf("gateway: listen %s:%s: %w", host, port, err)
	}
	return &Acceptor{
		listener:  ln,
		workers:   workers,
		primary:   primary,
		metrics:   metrics,
		keepalive: keepalive,
		log:       log,
	}, nil
}

// Addr returns the listener's bound address.
func (a *Acceptor) Addr() net.Addr { return a.listener.Addr() }

// Close stops accepting new connections.
func (a *Acceptor) Close() error { return a.listener.Close() }

// Run accepts connections until the listener is closed. It is single
// threaded (§4.6): every one of a client's 7 admission steps, including
// least-loaded worker selection, runs to completion before the next
// connection is accepted, so ActiveConnections() can never be read stale
// by a concurrent accept.
func (a *Acceptor) Run() {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if a.log != nil {
				a.log.Info().Err(err).Log("listener stopped accepting")
			}
			return
		}
		a.handle(conn)
	}
}

func (a *Acceptor) handle(conn net.Conn) {
	clientFD, err := extractRawFD(conn)
	if err != nil {
		conn.Close()
		return
	}
	setTCPOpts(clientFD, a.keepalive)

	// Read epoch before target/idx (§5 "Ordering guarantees"): Update()
	// publishes the new target then bumps epoch, so reading in this order
	// can only ever observe an epoch that is stale-or-current relative to
	// target, never an epoch that is newer than the target paired with it.
	// A stale epoch only gets the connection torn down on its first event.
	epoch := a.primary.Epoch()
	target, idx := a.primary.Current()

	if !target.Valid() {
		unix.Write(clientFD, UnavailableErrorResponse())
		unix.Close(clientFD)
		return
	}

	backendFD, state, err := dialBackendNonBlocking(target, a.keepalive)
	if err != nil {
		unix.Close(clientFD)
		if a.log != nil {
			a.log.Warning().Err(err).Int("candidate", idx).Log("backend connect failed")
		}
		return
	}

	c, err := newConnection(clientFD, backendFD, epoch, state, uuid.NewString())
	if err != nil {
		unix.Close(clientFD)
		unix.Close(backendFD)
		return
	}

	w := a.pickWorker()
	w.Assign(c)
}

// pickWorker returns the worker with the fewest active connections, ties
// broken by lowest index, matching the acceptor's least-loaded law (§8).
func (a *Acceptor) pickWorker() *Worker {
	best := a.workers[0]
	bestLoad := best.ActiveConnections()
	for _, w := range a.workers[1:] {
		if load := w.ActiveConnections(); load < bestLoad {
			best, bestLoad = w, load
		}
	}
	return best
}

// dialBackendNonBlocking opens a non-blocking socket to target and starts
// (or completes) the connect, returning the resulting state.
func dialBackendNonBlocking(target TargetAddress, keepalive bool) (int, ConnState, error) {
	sa, family, err := sockaddrFor(target)
	if err != nil {
		return -1, 0, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, 0, err
	}
	setTCPOpts(fd, keepalive)

	err = unix.Connect(fd, sa)
	switch err {
	case nil:
		return fd, StateEstablished, nil
	case unix.EINPROGRESS:
		return fd, StateConnecting, nil
	default:
		unix.Close(fd)
		return -1, 0, err
	}
}

// extractRawFD duplicates the raw fd underlying conn and closes the
// original net.Conn, handing exclusive ownership of the duplicate to the
// caller for direct epoll/splice use.
func extractRawFD(conn net.Conn) (int, error) {
	sc, ok := conn.(syscallConner)
	if !ok {
		conn.Close()
		return -1, fmt.Errorf("gateway: connection does not expose a raw fd")
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		conn.Close()
		return -1, err
	}

	var dupFD int
	var dupErr error
	ctrlErr := rc.Control(func(fd uintptr) {
		dupFD, dupErr = unix.Dup(int(fd))
	})
	conn.Close()
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	if dupErr != nil {
		return -1, dupErr
	}
	if err := unix.SetNonblock(dupFD, true); err != nil {
		unix.Close(dupFD)
		return -1, err
	}
	return dupFD, nil
}

// syscallConner is satisfied by *net.TCPConn (and anything else exposing a
// raw fd via SyscallConn).
type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}
