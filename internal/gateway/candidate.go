package gateway

import (
	"fmt"
	"net"
)

// Candidate is one configured CANDIDATES entry: a PostgreSQL host:port that
// the discovery loop probes for primary status.
type Candidate struct {
	Host string
	Port string
}

func (c Candidate) String() string { return net.JoinHostPort(c.Host, c.Port) }

// TargetAddress is a resolved, comparable backend address. Two TargetAddress
// values compare equal (via Equal) when they denote the same IP and port,
// independent of the hostname that produced them -- resolution is re-done on
// every discovery tick, so a DNS change under a stable name must still be
// detected as a primary change.
type TargetAddress struct {
	Host string // original candidate host, for logging
	Port string
	IP   net.IP
	Zone string
}

// Valid reports whether the address carries a resolved IP.
func (t TargetAddress) Valid() bool { return t.IP != nil }

// Equal reports whether two resolved addresses denote the same endpoint.
func (t TargetAddress) Equal(o TargetAddress) bool {
	if !t.Valid() || !o.Valid() {
		return t.Valid() == o.Valid()
	}
	return t.Port == o.Port && t.Zone == o.Zone && t.IP.Equal(o.IP)
}

func (t TargetAddress) String() string {
	if !t.Valid() {
		return "<none>"
	}
	return net.JoinHostPort(t.IP.String(), t.Port)
}

// Resolve looks up the candidate's host and returns its first resolved
// address, mirroring the original's resolve_addr (first getaddrinfo result).
func (c Candidate) Resolve() (TargetAddress, error) {
	ips, err := net.LookupIP(c.Host)
	if err != nil {
		return TargetAddress{}, fmt.Errorf("gateway: resolve %s: %w", c.Host, err)
	}
	if len(ips) == 0 {
		return TargetAddress{}, fmt.Errorf("gateway: resolve %s: no addresses", c.Host)
	}
	return TargetAddress{Host: c.Host, Port: c.Port, IP: ips[0]}, nil
}

// DialAddr returns the net.Dial-compatible "ip:port" string for t.
func (t TargetAddress) DialAddr() string {
	return net.JoinHostPort(t.IP.String(), t.Port)
}
