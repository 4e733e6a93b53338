// Package config loads pg-gateway's environment-driven configuration.
//
// Configuration parsing is deliberately thin: it is named as an external
// collaborator in the core proxy specification, not part of the data
// plane itself.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the fully resolved, validated runtime configuration.
type Config struct {
	Candidates []CandidateSpec

	PGDatabase string
	PGUser     string
	PGPassword string

	ConnectTimeoutMS int
	QueryTimeoutMS   int
	CheckEverySec    int

	NumThreads int

	ListenHost string
	ListenPort string

	MetricsHost string
	MetricsPort string

	TCPKeepalive bool
}

// CandidateSpec is a parsed host:port pair from CANDIDATES.
type CandidateSpec struct {
	Host string
	Port string
}

// Load reads configuration from the environment and optional positional
// arguments (listen_host listen_port), matching the original binary's
// `<listen_addr> <listen_port>` argv contract.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		PGDatabase:       getenvDefault("PGDATABASE", "postgres"),
		PGUser:           os.Getenv("PGUSER"),
		PGPassword:       os.Getenv("PGPASSWORD"),
		ConnectTimeoutMS: getenvIntDefault("CONNECT_TIMEOUT_MS", 800),
		QueryTimeoutMS:   getenvIntDefault("QUERY_TIMEOUT_MS", 500),
		CheckEverySec:    getenvIntDefault("CHECK_EVERY", 2),
		NumThreads:       clamp(getenvIntDefault("NUM_THREADS", 1), 1, 64),
		ListenHost:       getenvDefault("LISTEN_HOST", "localhost"),
		ListenPort:       getenvDefault("LISTEN_PORT", "5432"),
		MetricsHost:      getenvDefault("METRICS_HOST", "::"),
		MetricsPort:      getenvDefault("METRICS_PORT", "9090"),
		TCPKeepalive:     getenvIntDefault("TCP_KEEPALIVE", 1) != 0,
	}

	if len(args) >= 2 {
		cfg.ListenHost = args[0]
		cfg.ListenPort = args[1]
	} else if len(args) == 1 {
		return nil, fmt.Errorf("config: expected 0 or 2 positional args (listen_host listen_port), got 1")
	}

	candidates, err := parseCandidates(os.Getenv("CANDIDATES"))
	if err != nil {
		return nil, err
	}
	cfg.Candidates = candidates

	return cfg, nil
}

func parseCandidates(s string) ([]CandidateSpec, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("config: CANDIDATES env var required")
	}

	parts := strings.Split(s, ",")
	out := make([]CandidateSpec, 0, len(parts))
	for _, tok := range parts {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		idx := strings.LastIndexByte(tok, ':')
		if idx < 0 {
			return nil, fmt.Errorf("config: invalid candidate format %q (expected host:port)", tok)
		}
		out = append(out, CandidateSpec{Host: tok[:idx], Port: tok[idx+1:]})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("config: CANDIDATES env var required")
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
