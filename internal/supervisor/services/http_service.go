// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lucyn-dev/lucyn/internal/logging"
)

// HTTPServer is the subset of *http.Server the service drives.
//
// Tests satisfy it with a fake that records Shutdown calls; production
// passes *http.Server:
//   - ListenAndServe() error
//   - Shutdown(ctx context.Context) error
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under the supervisor tree.
//
// http.Server blocks in ListenAndServe while suture expects Serve to return
// when its context ends. The service bridges the two:
//
//  1. ListenAndServe runs in its own goroutine
//  2. Serve waits for that goroutine to fail or for ctx to be canceled
//  3. On cancellation, Shutdown drains in-flight requests for up to
//     shutdownTimeout on a fresh context
//
// A listener failure (port in use, TLS error) is returned so the supervisor
// restarts the service with backoff.
//
// Example usage:
//
//	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: router.SetupChi()}
//	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. Non-positive timeouts become 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
//
// It returns ctx.Err() after a graceful shutdown and a wrapped error when
// the listener or the drain fails. http.ErrServerClosed is expected during
// shutdown and is not reported.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		logging.Info().Dur("timeout", h.shutdownTimeout).Msg("Shutting down HTTP server")

		// The parent context is already canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String names the service in supervisor logs.
func (h *HTTPServerService) String() string {
	return "http-server"
}
