// Package metricsserver exposes the Prometheus /metrics endpoint (§6),
// replacing the original's hand-rolled HTTP response builder in metrics.c
// with promhttp.
package metricsserver

import (
	"context"
	"net"
	"net/http"
)

// Server serves GET /metrics and GET / with the Prometheus text-format
// body; any other path 404s, matching the original's substring-matched
// request dispatch (strncmp "GET /metrics" / "GET / ").
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// New binds host:port and serves handler (typically promhttp.Handler())
// at both /metrics and /.
func New(host, port string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/metrics" {
			http.NotFound(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	})

	return &Server{
		httpServer: &http.Server{Handler: mux},
		listener:   ln,
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve blocks, serving requests until Shutdown is called.
func (s *Server) Serve() error {
	err := s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
