// Command pg-gateway is a Linux-only Layer-4 TCP gateway that directs
// PostgreSQL client connections to the cluster's current writable primary.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesudip/pg-gateway/internal/config"
	"github.com/mesudip/pg-gateway/internal/gateway"
	"github.com/mesudip/pg-gateway/internal/healthprobe"
	"github.com/mesudip/pg-gateway/internal/logging"
	"github.com/mesudip/pg-gateway/internal/metricsserver"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logging.New(os.Stderr)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	signal.Ignore(syscall.SIGPIPE)

	candidates := make([]gateway.Candidate, len(cfg.Candidates))
	for i, c := range cfg.Candidates {
		candidates[i] = gateway.Candidate{Host: c.Host, Port: c.Port}
	}

	reg := prometheus.NewRegistry()
	prober := healthprobe.NewProber(
		cfg.PGDatabase, cfg.PGUser, cfg.PGPassword,
		time.Duration(cfg.ConnectTimeoutMS)*time.Millisecond,
		time.Duration(cfg.QueryTimeoutMS)*time.Millisecond,
	)

	gw, err := gateway.New(gateway.Config{
		ListenHost:       cfg.ListenHost,
		ListenPort:       cfg.ListenPort,
		NumThreads:       cfg.NumThreads,
		Candidates:       candidates,
		ConnectTimeoutMS: cfg.ConnectTimeoutMS,
		QueryTimeoutMS:   cfg.QueryTimeoutMS,
		CheckEverySec:    cfg.CheckEverySec,
		TCPKeepalive:     cfg.TCPKeepalive,
	}, reg, prober, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	metricsSrv, err := metricsserver.New(cfg.MetricsHost, cfg.MetricsPort, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := metricsSrv.Serve(); err != nil && err != http.ErrServerClosed {
			log.Warning().Err(err).Log("metrics server stopped")
		}
	}()

	log.Info().
		Str("listen", gw.Addr()).
		Str("metrics", metricsSrv.Addr()).
		Int("workers", cfg.NumThreads).
		Log("pg-gateway started")

	gw.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	log.Info().Log("pg-gateway stopped")
	return 0
}
