//go:build linux

package gateway

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MaxEvents bounds a single Wait() batch, mirroring the original's
// MAX_EVENTS.
const MaxEvents = 4096

// Event is one ready fd from a Wait() batch. Conn is the opaque tag
// associated with the fd at Register time; it is nil for the worker's
// wakeup pipe, the way the original used a NULL data.ptr to mark it.
type Event struct {
	FD       int
	Conn     *Connection
	Readable bool
	Writable bool
	HangUp   bool
}

// Poller wraps a single epoll instance. It is built to be owned and driven
// by exactly one goroutine (one Worker) -- the readiness substrate itself
// does no internal locking, following the single-threaded-driver assumption
// the original's per-thread epfd design makes. The fd->tag registry is a
// map keyed by fd, generalizing
// joeycumines-go-utilpkg/eventloop's FastPoller fixed-size fd table from a
// callback-dispatch model to the tag + batch model this gateway's
// epoch-invalidation sweep needs (the sweep mutates already-returned batch
// entries, which a callback-dispatch poller can't expose).
type Poller struct {
	epfd int
	buf  [MaxEvents]unix.EpollEvent
	tags map[int]*Connection
}

// NewPoller creates a fresh epoll instance.
func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("gateway: epoll_create1: %w", err)
	}
	return &Poller{epfd: epfd, tags: make(map[int]*Connection)}, nil
}

// Close closes the epoll instance. It does not close registered fds.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}

func ioEvents(readable, writable, hangup bool) uint32 {
	var ev uint32 = unix.EPOLLET | unix.EPOLLRDHUP
	if readable {
		ev |= unix.EPOLLIN
	}
	if writable {
		ev |= unix.EPOLLOUT
	}
	_ = hangup
	return ev
}

// Register adds fd to the epoll set watching for readable/writable
// readiness (edge-triggered, plus RDHUP), tagging it with conn (nil for the
// wakeup fd).
func (p *Poller) Register(fd int, conn *Connection, readable, writable bool) error {
	ev := unix.EpollEvent{Events: ioEvents(readable, writable, false), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("gateway: epoll_ctl add fd=%d: %w", fd, err)
	}
	p.tags[fd] = conn
	return nil
}

// Modify updates the readiness interest for an already-registered fd.
func (p *Poller) Modify(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: ioEvents(readable, writable, false), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("gateway: epoll_ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

// Unregister removes fd from the epoll set and its tag.
func (p *Poller) Unregister(fd int) {
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(p.tags, fd)
}

// LiveConnections returns every distinct non-nil Connection currently
// registered (each appears once, despite being tagged against two fds),
// for use by a caller that needs to tear every in-flight connection down,
// e.g. on graceful shutdown.
func (p *Poller) LiveConnections() []*Connection {
	seen := make(map[*Connection]struct{}, len(p.tags))
	conns := make([]*Connection, 0, len(p.tags))
	for _, c := range p.tags {
		if c == nil {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		conns = append(conns, c)
	}
	return conns
}

// Wait blocks until at least one fd is ready (or timeoutMs elapses) and
// returns the batch of ready events. The returned slice is built on batch's
// backing array (batch is reset to length 0 first), so when the caller
// passes the same batch back in it is only valid until the next Wait call --
// callers must finish
// processing (including any invalidation sweep) before calling Wait again.
func (p *Poller) Wait(timeoutMs int, batch []Event) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.buf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return batch[:0], nil
		}
		return nil, fmt.Errorf("gateway: epoll_wait: %w", err)
	}

	batch = batch[:0]
	for i := 0; i < n; i++ {
		raw := p.buf[i]
		fd := int(raw.Fd)
		batch = append(batch, Event{
			FD:       fd,
			Conn:     p.tags[fd],
			Readable: raw.Events&(unix.EPOLLIN|unix.EPOLLERR) != 0,
			Writable: raw.Events&unix.EPOLLOUT != 0,
			HangUp:   raw.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
		})
	}
	return batch, nil
}

// InvalidateConn nulls out every remaining entry in batch[from:] that
// refers to conn, preventing a double-teardown when both the client and
// backend fds of the same Connection are ready in one batch and the first
// is handled first (the invalidate_pending_events pattern).
func InvalidateConn(batch []Event, from int, conn *Connection) {
	for j := from; j < len(batch); j++ {
		if batch[j].Conn == conn {
			batch[j].Conn = nil
		}
	}
}
