// Package server exposes one engine's registry over Connect unary RPC.
// The inspection protocol has no generated schema: procedures are mounted
// by path and messages travel as canonical CBOR structs.
package server

import (
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/tether/bridge"
)

// Server wraps a running engine and serves the inspection protocol.
type Server struct {
	worker *EngineWorker
	mux    *http.ServeMux

	stopCollector func()
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	collectionInterval time.Duration
}

// WithCollectionInterval sets how often the server drains the engine's
// pending proxy collections. Zero disables the background collector.
func WithCollectionInterval(d time.Duration) Option {
	return func(c *serverConfig) { c.collectionInterval = d }
}

// New creates a Server wrapping the given engine. The engine must already
// carry its registrations; the server only reads them.
func New(e *bridge.Engine, opts ...Option) *Server {
	cfg := &serverConfig{
		collectionInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewEngineWorker(e)
	s := &Server{
		worker: worker,
		mux:    http.NewServeMux(),
	}

	svc := NewInspectionService(worker)
	codec := connect.WithCodec(cborCodec{})

	s.mux.Handle(ListClassesProcedure, connect.NewUnaryHandler(ListClassesProcedure, svc.ListClasses, codec))
	s.mux.Handle(DescribeClassProcedure, connect.NewUnaryHandler(DescribeClassProcedure, svc.DescribeClass, codec))
	s.mux.Handle(ListEnumsProcedure, connect.NewUnaryHandler(ListEnumsProcedure, svc.ListEnums, codec))
	s.mux.Handle(DigestProcedure, connect.NewUnaryHandler(DigestProcedure, svc.Digest, codec))

	if cfg.collectionInterval > 0 {
		s.stopCollector = s.startCollector(cfg.collectionInterval)
	}

	return s
}

// Handler returns the HTTP handler serving the inspection procedures,
// for mounting into an existing server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address. The address
// should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	fmt.Printf("Tether inspection server listening on %s\n", addr)
	fmt.Printf("  Connect (CBOR): http://%s%s\n", addr, ListClassesProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the background collector and the engine worker.
func (s *Server) Stop() {
	if s.stopCollector != nil {
		s.stopCollector()
	}
	s.worker.Stop()
}

// startCollector drains pending proxy collections on a fixed interval, so
// finalizers of script-dropped proxies run even when no call arrives.
func (s *Server) startCollector(interval time.Duration) func() {
	quit := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.worker.Do(func(e *bridge.Engine) interface{} {
					return e.ProcessCollections()
				})
			case <-quit:
				return
			}
		}
	}()
	return func() { close(quit) }
}
