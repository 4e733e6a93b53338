package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		out, err := parseCandidates("10.0.0.10:5432,10.0.0.11:5432")
		require.NoError(t, err)
		require.Equal(t, []CandidateSpec{
			{Host: "10.0.0.10", Port: "5432"},
			{Host: "10.0.0.11", Port: "5432"},
		}, out)
	})

	t.Run("trims leading space", func(t *testing.T) {
		out, err := parseCandidates("a:1, b:2")
		require.NoError(t, err)
		require.Equal(t, []CandidateSpec{{Host: "a", Port: "1"}, {Host: "b", Port: "2"}}, out)
	})

	t.Run("ipv6 host uses last colon as separator", func(t *testing.T) {
		out, err := parseCandidates("::1:5432")
		require.NoError(t, err)
		require.Equal(t, []CandidateSpec{{Host: "::1", Port: "5432"}}, out)
	})

	t.Run("empty is an error", func(t *testing.T) {
		_, err := parseCandidates("")
		require.Error(t, err)
	})

	t.Run("missing port is an error", func(t *testing.T) {
		_, err := parseCandidates("justahost")
		require.Error(t, err)
	})
}

func TestLoadPositionalArgs(t *testing.T) {
	t.Setenv("CANDIDATES", "a:1")
	cfg, err := Load([]string{"127.0.0.1", "6543"})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.ListenHost)
	require.Equal(t, "6543", cfg.ListenPort)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CANDIDATES", "a:1,b:2")
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.PGDatabase)
	require.Equal(t, 800, cfg.ConnectTimeoutMS)
	require.Equal(t, 500, cfg.QueryTimeoutMS)
	require.Equal(t, 2, cfg.CheckEverySec)
	require.Equal(t, 1, cfg.NumThreads)
	require.True(t, cfg.TCPKeepalive)
}

func TestLoadClampsNumThreads(t *testing.T) {
	t.Setenv("CANDIDATES", "a:1")
	t.Setenv("NUM_THREADS", "9000")
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.NumThreads)

	t.Setenv("NUM_THREADS", "0")
	cfg, err = Load(nil)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.NumThreads)
}

func TestLoadMissingCandidates(t *testing.T) {
	t.Setenv("CANDIDATES", "")
	_, err := Load(nil)
	require.Error(t, err)
}
