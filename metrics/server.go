package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the engine metrics over HTTP for setups where no other
// process-level metrics endpoint exists. Migration runs are short-lived,
// so the usual pattern is starting it for the duration of a run and
// shutting it down once the batch finishes.
type Server struct {
	server  *http.Server
	errChan chan error
}

// NewServer creates a metrics server listening on addr, serving the
// default Prometheus registry at /metrics.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		errChan: make(chan error, 1),
	}
}

// Start begins serving in a goroutine and returns immediately. Listen
// failures surface through Err.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.errChan <- err
		}
	}()
}

// Err returns a serve error if one occurred, without blocking.
func (s *Server) Err() error {
	select {
	case err := <-s.errChan:
		return err
	default:
		return nil
	}
}

// Shutdown stops the server, letting in-flight scrapes finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
