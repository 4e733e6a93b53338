package healthprobe

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesudip/pg-gateway/internal/gateway"
)

func TestProbeUnhealthyOnConnectFailure(t *testing.T) {
	// A closed listener's port refuses connections immediately, so the
	// probe should classify it unhealthy without waiting out the full
	// connect timeout.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	p := NewProber("postgres", "health", "secret", 500*time.Millisecond, 500*time.Millisecond)
	cand := gateway.Candidate{Host: "127.0.0.1", Port: strconv.Itoa(addr.Port)}

	result := p.Probe(context.Background(), cand)
	require.Equal(t, gateway.HealthUnhealthy, result.State)
	require.NotEmpty(t, result.Reason)
}
