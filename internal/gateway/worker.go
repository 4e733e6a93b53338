//go:build linux

package gateway

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/mesudip/pg-gateway/internal/logging"
)

// Worker owns one epoll instance and drives the splice forwarding loop for
// every Connection assigned to it. Each Worker is driven by exactly one
// goroutine (Run), matching the original's one-thread-per-epfd design.
type Worker struct {
	id       int
	poller   *Poller
	wakeupR  int
	wakeupW  int
	incoming chan *Connection
	active   atomic.Int64
	metrics  *Metrics
	primary  *PrimaryState
	log      *logging.Logger
}

// NewWorker creates a Worker with its own epoll instance and wakeup pipe.
func NewWorker(id int, metrics *Metrics, primary *PrimaryState, log *logging.Logger) (*Worker, error) {
	poller, err := NewPoller()
	if err != nil {
		return nil, err
	}
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		poller.Close()
		return nil, err
	}
	w := &Worker{
		id:       id,
		poller:   poller,
		wakeupR:  fds[0],
		wakeupW:  fds[1],
		incoming: make(chan *Connection, 256),
		metrics:  metrics,
		primary:  primary,
		log:      log,
	}
	if err := poller.Register(w.wakeupR, nil, true, false); err != nil {
		poller.Close()
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	return w, nil
}

// ActiveConnections returns the worker's current connection count, used by
// the Acceptor's least-loaded selection.
func (w *Worker) ActiveConnections() int64 { return w.active.Load() }

// Assign hands a freshly-accepted Connection to this worker and wakes its
// epoll_wait immediately, so the new fds start getting serviced without
// waiting out the poll timeout.
func (w *Worker) Assign(c *Connection) {
	w.active.Add(1)
	w.incoming <- c
	var b [1]byte
	unix.Write(w.wakeupW, b[:])
}

// Run drives the forwarding loop until stop is closed.
func (w *Worker) Run(stop <-chan struct{}) {
	if w.log != nil {
		w.log.Info().Int("worker", w.id).Log("worker started")
	}
	batch := make([]Event, 0, MaxEvents)
	for {
		select {
		case <-stop:
			w.drainIncoming()
			for _, c := range w.poller.LiveConnections() {
				w.teardown(c, TeardownShutdown)
			}
			if w.log != nil {
				w.log.Info().Int("worker", w.id).Log("worker stopped")
			}
			return
		default:
		}

		events, err := w.poller.Wait(1000, batch)
		if err != nil {
			if w.log != nil {
				w.log.Err().Err(err).Int("worker", w.id).Log("epoll_wait failed")
			}
			return
		}
		batch = events

		curEpoch := w.primary.Epoch()

		for i := 0; i < len(batch); i++ {
			ev := batch[i]

			if ev.FD == w.wakeupR {
				w.drainWakeup()
				w.drainIncoming()
				continue
			}
			if ev.Conn == nil {
				continue // invalidated earlier in this batch
			}
			c := ev.Conn

			if c.EpochBound != curEpoch {
				InvalidateConn(batch, i+1, c)
				w.teardown(c, TeardownEpochStale)
				continue
			}

			reason, ok := w.drive(c)
			if !ok {
				InvalidateConn(batch, i+1, c)
				w.teardown(c, reason)
				continue
			}

			w.rearm(c)
		}
	}
}

func (w *Worker) drainWakeup() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.wakeupR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *Worker) drainIncoming() {
	for {
		select {
		case c := <-w.incoming:
			w.register(c)
		default:
			return
		}
	}
}

func (w *Worker) register(c *Connection) {
	readable := true
	writable := c.State == StateConnecting
	if err := w.poller.Register(c.ClientFD, c, readable, false); err != nil {
		w.active.Add(-1)
		c.Close()
		return
	}
	if err := w.poller.Register(c.BackendFD, c, readable, writable); err != nil {
		w.poller.Unregister(c.ClientFD)
		w.active.Add(-1)
		c.Close()
		return
	}
	w.metrics.ConnectionOpened()
}

// drive runs one iteration of the connection's state machine: completing a
// pending connect, then splicing both directions, mirroring
// drive_connection. ok is false when the connection must be torn down.
func (w *Worker) drive(c *Connection) (reason TeardownReason, ok bool) {
	if c.State == StateConnecting {
		errno, gerr := unix.GetsockoptInt(c.BackendFD, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil || errno != 0 {
			return TeardownIOError, false
		}
		c.State = StateEstablished
	}

	n, res := spliceIn(c.ClientFD, c.c2bPipe[1])
	switch res {
	case spliceEOF:
		return TeardownClientClosed, false
	case spliceErr:
		return TeardownIOError, false
	}
	if n > 0 {
		w.metrics.BytesClientToBackend.Add(float64(n))
	}
	if err := spliceOut(c.c2bPipe[0], c.BackendFD); err != nil {
		return TeardownIOError, false
	}

	n, res = spliceIn(c.BackendFD, c.b2cPipe[1])
	switch res {
	case spliceEOF:
		return TeardownBackendClosed, false
	case spliceErr:
		return TeardownIOError, false
	}
	if n > 0 {
		w.metrics.BytesBackendToClient.Add(float64(n))
	}
	if err := spliceOut(c.b2cPipe[0], c.ClientFD); err != nil {
		return TeardownIOError, false
	}

	return 0, true
}

// rearm re-evaluates EPOLLOUT interest for both fds based on whatever is
// still buffered in each intermediary pipe, mirroring update_epoll_flags.
func (w *Worker) rearm(c *Connection) {
	if c.State == StateConnecting {
		w.poller.Modify(c.BackendFD, true, true)
		return
	}
	wantClientWrite := pipeBytesAvailable(c.b2cPipe[0]) > 0
	wantBackendWrite := pipeBytesAvailable(c.c2bPipe[0]) > 0
	w.poller.Modify(c.ClientFD, true, wantClientWrite)
	w.poller.Modify(c.BackendFD, true, wantBackendWrite)
}

func (w *Worker) teardown(c *Connection, reason TeardownReason) {
	w.poller.Unregister(c.ClientFD)
	w.poller.Unregister(c.BackendFD)
	if !c.Close() {
		return
	}
	w.active.Add(-1)
	w.metrics.ConnectionClosed()
	if w.log != nil {
		lvl := w.log.Debug()
		if reason == TeardownBackendClosed {
			lvl = w.log.Warning()
		}
		lvl.Int("worker", w.id).Str("conn", c.ID).Str("reason", reason.String()).Log("connection closed")
	}
}
