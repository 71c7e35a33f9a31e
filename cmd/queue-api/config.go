// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/guitarbeat/stack-master-tool/internal/logging"
	"github.com/guitarbeat/stack-master-tool/internal/service"
)

// flags are the command line flags for the queue service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the queue service.
type environment struct {
	Port         string
	NatsURL      string
	Backend      service.Backend
	SignalingURL string
	PeerID       string
}

// parseFlags parses command line flags for the queue service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by
	// [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the queue service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	backend := service.Backend(os.Getenv("QUEUE_BACKEND"))
	if backend == "" {
		backend = service.BackendCentralized
	}
	if !backend.IsValid() {
		slog.Error("invalid QUEUE_BACKEND", "backend", string(backend))
		os.Exit(1)
	}

	signalingURL := os.Getenv("SIGNALING_URL")
	if signalingURL == "" {
		signalingURL = "ws://localhost:8081/ws"
	}

	return environment{
		Port:         port,
		NatsURL:      natsURL,
		Backend:      backend,
		SignalingURL: signalingURL,
		PeerID:       os.Getenv("PEER_ID"),
	}
}
