//go:build linux

package gateway

import (
	"strconv"

	"golang.org/x/sys/unix"
)

func parsePort(s string) (int, error) {
	return strconv.Atoi(s)
}

// setTCPOpts applies TCP_NODELAY unconditionally and, when keepalive is
// enabled, SO_KEEPALIVE with the original's tuned idle/interval/count
// values, mirroring set_tcp_opts.
func setTCPOpts(fd int, keepalive bool) {
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	if !keepalive {
		return
	}
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60)
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
}

// sockaddrFor builds the unix.Sockaddr + address family for a resolved
// target, supporting both IPv4 and IPv6.
func sockaddrFor(t TargetAddress) (unix.Sockaddr, int, error) {
	port, err := parsePort(t.Port)
	if err != nil {
		return nil, 0, err
	}
	if ip4 := t.IP.To4(); ip4 != nil {
		var addr [4]byte
		copy(addr[:], ip4)
		return &unix.SockaddrInet4{Port: port, Addr: addr}, unix.AF_INET, nil
	}
	var addr [16]byte
	copy(addr[:], t.IP.To16())
	return &unix.SockaddrInet6{Port: port, Addr: addr}, unix.AF_INET6, nil
}
