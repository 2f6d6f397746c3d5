package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServer runs an http.Handler with the service's standard timeouts
type HTTPServer struct {
	name     string
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	errCh    chan error
}

// NewHTTPServer creates a server named for logging, listening on address
func NewHTTPServer(name, address string, handler http.Handler, logger *slog.Logger) *HTTPServer {
	return &HTTPServer{
		name:   name,
		logger: logger,
		errCh:  make(chan error, 1),
		server: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start binds the address and serves in the background.
// Bind failures are returned; later serve failures arrive on Errors.
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("%s: listen on %s: %w", h.name, h.server.Addr, err)
	}
	h.listener = ln

	h.logger.Info("Starting HTTP server",
		slog.String("server", h.name),
		slog.String("address", ln.Addr().String()),
	)

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error",
				slog.String("server", h.name),
				slog.String("error", err.Error()),
			)
			h.errCh <- fmt.Errorf("%s: %w", h.name, err)
		}
	}()

	return nil
}

// Errors delivers a fatal serve error, if one happens
func (h *HTTPServer) Errors() <-chan error {
	return h.errCh
}

// Addr returns the bound address once started
func (h *HTTPServer) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...", slog.String("server", h.name))

	return h.server.Shutdown(ctx)
}
