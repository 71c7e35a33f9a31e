// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package main is the signaling relay for the peer-to-peer backend. Peers
// connect over websocket, join a room named after their meeting, and every
// frame a peer sends is forwarded verbatim to the other peers in that room.
// The relay never inspects payloads beyond the routing envelope.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func main() {
	port := flag.String("p", envOrDefault("SIGNALING_PORT", "8081"), "listen port")
	bind := flag.String("bind", "*", "interface to bind on")
	debug := flag.Bool("d", false, "enable debug logging")
	flag.Parse()

	if *debug {
		_ = os.Setenv("LOG_LEVEL", "debug")
	}
	logging.InitStructureLogConfig()

	h := newHub()
	go h.run()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.With(logging.ErrKey, err).Warn("websocket upgrade failed")
			return
		}
		c := &client{hub: h, conn: conn, send: make(chan []byte, 64)}
		go c.writePump()
		go c.readPump()
	})

	addr := *bind
	if addr == "*" {
		addr = ""
	}
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", addr, *port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("signaling server listening", "port", *port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.With(logging.ErrKey, err).Error("HTTP server error")
			done <- os.Interrupt
		}
	}()

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down HTTP server")
	}
	slog.Info("signaling server stopped")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
