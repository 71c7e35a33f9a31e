// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
	"github.com/nats-io/nats.go"
)

// setupHTTPServer starts the health endpoint server. Liveness is always OK
// while the process runs; readiness requires a live NATS connection in
// centralized mode.
func setupHTTPServer(flags flags, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if natsConn != nil && !natsConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NATS not connected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	bind := flags.Bind
	if bind == "*" {
		bind = ""
	}

	httpServer := &http.Server{
		Addr:              bind + ":" + flags.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		slog.Info("starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("HTTP server error")
		}
	}()

	return httpServer
}
