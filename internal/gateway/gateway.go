//go:build linux

package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesudip/pg-gateway/internal/logging"
)

// Config is the subset of internal/config.Config the data plane needs,
// decoupled from the config package so gateway has no import-cycle risk.
type Config struct {
	ListenHost string
	ListenPort string
	NumThreads int
	Candidates []Candidate

	ConnectTimeoutMS int
	QueryTimeoutMS   int
	CheckEverySec    int

	TCPKeepalive bool
}

// Gateway wires together the Discovery loop, the worker pool, and the
// Acceptor -- the Go analogue of the original's main().
type Gateway struct {
	cfg      Config
	primary  *PrimaryState
	metrics  *Metrics
	workers  []*Worker
	acceptor *Acceptor
	discover *Discovery
	log      *logging.Logger

	stop chan struct{}
}

// New builds every component but does not start them.
func New(cfg Config, reg prometheus.Registerer, prober Prober, log *logging.Logger) (*Gateway, error) {
	if len(cfg.Candidates) == 0 {
		return nil, fmt.Errorf("gateway: no candidates configured")
	}
	if cfg.NumThreads < 1 {
		cfg.NumThreads = 1
	}

	primary := NewPrimaryState()
	metrics := NewMetrics(reg)

	workers := make([]*Worker, cfg.NumThreads)
	for i := range workers {
		w, err := NewWorker(i, metrics, primary, log)
		if err != nil {
			return nil, fmt.Errorf("gateway: worker %d: %w", i, err)
		}
		workers[i] = w
	}

	acceptor, err := NewAcceptor(cfg.ListenHost, cfg.ListenPort, workers, primary, metrics, cfg.TCPKeepalive, log)
	if err != nil {
		return nil, err
	}

	discover := &Discovery{
		Candidates:   cfg.Candidates,
		Prober:       prober,
		State:        primary,
		Metrics:      metrics,
		CheckEvery:   secondsOrDefault(cfg.CheckEverySec, 2),
		QueryTimeout: millisOrDefault(cfg.QueryTimeoutMS, 500),
		Log:          log,
	}

	return &Gateway{
		cfg:      cfg,
		primary:  primary,
		metrics:  metrics,
		workers:  workers,
		acceptor: acceptor,
		discover: discover,
		log:      log,
		stop:     make(chan struct{}),
	}, nil
}

// Addr returns the bound listener address, useful for tests that bind an
// ephemeral port.
func (g *Gateway) Addr() string { return g.acceptor.Addr().String() }

// Run starts the discovery loop, the worker pool, and the acceptor, and
// blocks until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	for _, w := range g.workers {
		go w.Run(g.stop)
	}
	go g.discover.Run(ctx)
	go g.acceptor.Run()

	<-ctx.Done()
	g.Shutdown()
}

// Shutdown stops accepting new connections and signals every worker to
// exit its loop. Each worker, once it sees the signal, tears down every
// connection it still holds before returning.
func (g *Gateway) Shutdown() {
	g.acceptor.Close()
	close(g.stop)
}

func secondsOrDefault(s, def int) time.Duration {
	if s <= 0 {
		s = def
	}
	return time.Duration(s) * time.Second
}

func millisOrDefault(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}
