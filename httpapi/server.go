// Package httpapi implements the textsurf HTTP surface: directory
// listing, stat, the char/line content endpoints, create/update/delete,
// and the pipe-delimited "api2" family, all routed with chi and backed by
// a *pool.Pool.
package httpapi

import (
	"context"
	"net"
	"net/http"
)

// Options configures the listener. BindAddr is the only CLI-facing knob
// here; NewRouter takes the rest (the pool, the logger, the base URL).
type Options struct {
	BindAddr string
}

// Server wraps a net.Listener and an *http.Server (Serve/Shutdown/Addr
// shape), trimmed to this service's single plain-HTTP listener — no TLS,
// no unix sockets, no basic auth.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// NewServer binds opts.BindAddr and wraps handler. It does not start
// serving; call Serve for that.
func NewServer(opts Options, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", opts.BindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		httpServer: &http.Server{Handler: handler},
		listener:   ln,
	}, nil
}

// Addr is the actual address bound, useful when BindAddr used port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve starts accepting connections in a background goroutine. It
// returns immediately; errors other than http.ErrServerClosed are
// reported to errs if non-nil.
func (s *Server) Serve(errs chan<- error) {
	go func() {
		err := s.httpServer.Serve(s.listener)
		if err != nil && err != http.ErrServerClosed && errs != nil {
			errs <- err
		}
	}()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
