/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package lifecycle runs a service's HTTP frontend with signal-driven
// graceful shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/fleettrace/pkg/logger"
)

const (
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
)

// Service is implemented by components with background work tied to the
// process lifetime.
type Service interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// ServerOptions configures RunServer.
type ServerOptions struct {
	ListenAddr      string
	Handler         http.Handler
	Service         Service
	Logger          logger.Logger
	ShutdownTimeout time.Duration
}

// RunServer starts the service and HTTP listener, then blocks until the
// context is canceled or SIGINT/SIGTERM arrives. Shutdown drains in-flight
// requests before stopping the service's background work.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	if opts.Service != nil {
		opts.Service.Start(ctx)
	}

	srv := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           opts.Handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		opts.Logger.Info().Str("listen_addr", opts.ListenAddr).Msg("Starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error

	select {
	case <-ctx.Done():
		opts.Logger.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		opts.Logger.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}

	if opts.Service != nil {
		if err := opts.Service.Stop(shutdownCtx); err != nil {
			opts.Logger.Warn().Err(err).Msg("Service stop incomplete")
		}
	}

	return runErr
}
