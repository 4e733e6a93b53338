//go:build linux

package gateway

import (
	"golang.org/x/sys/unix"
)

const (
	// SpliceChunk is the maximum number of bytes moved per splice(2) call.
	SpliceChunk = 128 * 1024
	// PipeCapacity is the size every intermediary pipe is grown to via
	// F_SETPIPE_SZ, trading memory for fewer splice round-trips.
	PipeCapacity = 1024 * 1024
)

// makePipe returns a non-blocking, close-on-exec pipe grown to
// PipeCapacity, mirroring make_pipe in the original C source.
func makePipe() (p [2]int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return p, err
	}
	p[0], p[1] = fds[0], fds[1]
	unix.FcntlInt(uintptr(p[0]), unix.F_SETPIPE_SZ, PipeCapacity)
	unix.FcntlInt(uintptr(p[1]), unix.F_SETPIPE_SZ, PipeCapacity)
	return p, nil
}

// pipeBytesAvailable returns the number of unread bytes sitting in the
// pipe's read end (FIONREAD), used to decide whether EPOLLOUT needs
// (re-)arming on the downstream fd.
func pipeBytesAvailable(rfd int) int {
	n, err := unix.IoctlGetInt(rfd, unix.FIONREAD)
	if err != nil {
		return 0
	}
	return n
}

// spliceResult classifies the outcome of a spliceIn call.
type spliceResult int

const (
	spliceOK  spliceResult = iota // total > 0 bytes moved
	spliceEOF                     // from_fd reached EOF
	spliceErr                     // an unrecoverable error occurred
	spliceNone                    // would-block immediately, nothing moved
)

// spliceIn moves bytes from fromFD into toPipeW, looping until EAGAIN or a
// short splice (pipe full or source drained) the way the original's
// splice_in does, returning the total bytes moved.
func spliceIn(fromFD, toPipeW int) (int, spliceResult) {
	total := 0
	for {
		n, err := unix.Splice(fromFD, nil, toPipeW, nil, SpliceChunk, unix.SPLICE_F_MOVE|unix.SPLICE_F_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			return total, spliceErr
		}
		if n == 0 {
			return total, spliceEOF
		}
		total += int(n)
		if n < SpliceChunk {
			break
		}
	}
	if total > 0 {
		return total, spliceOK
	}
	return 0, spliceNone
}

// spliceOut drains fromPipeR into toFD, looping until EAGAIN or the pipe
// empties, mirroring splice_out.
func spliceOut(fromPipeR, toFD int) error {
	for {
		n, err := unix.Splice(fromPipeR, nil, toFD, nil, SpliceChunk, unix.SPLICE_F_MOVE|unix.SPLICE_F_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}
