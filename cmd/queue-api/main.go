// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package main is the queue service API. It serves meeting and speaking-queue
// operations over NATS request subjects, with either a centralized NATS
// key-value backend or a peer-to-peer replicated backend.
package main

import (
	"context"
	_ "expvar"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/handlers"
	"github.com/guitarbeat/stack-master-tool/internal/infrastructure/messaging"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
	"github.com/guitarbeat/stack-master-tool/internal/p2p"
	"github.com/guitarbeat/stack-master-tool/internal/service"
	"github.com/nats-io/nats.go"
)

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	// The centralized backend needs NATS regardless of which backend serves
	// requests: events broadcast over NATS subjects either way.
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	selector := service.NewBackendSelector(map[service.Backend]service.AdapterFactory{
		service.BackendCentralized: centralizedFactory(natsConn),
		service.BackendP2P:         p2pFactory(env),
	})

	meetingService, err := selector.Select(ctx, env.Backend)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error selecting backend", "backend", string(env.Backend))
		return
	}
	slog.InfoContext(ctx, "backend selected", "backend", string(env.Backend))

	meetingHandler := handlers.NewMeetingHandler(meetingService)

	httpServer := setupHTTPServer(flags, natsConn, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	if err := createNatsSubscriptions(ctx, meetingHandler, natsConn); err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer.Shutdown, natsConn, &gracefulCloseWG, meetingService, cancel)
}

func centralizedFactory(natsConn *nats.Conn) service.AdapterFactory {
	return func(ctx context.Context) (domain.MeetingService, error) {
		repos, err := getKeyValueStores(ctx, natsConn)
		if err != nil {
			return nil, err
		}

		return service.NewCentralizedService(
			repos.Meeting,
			repos.Participant,
			repos.Queue,
			messaging.NewMessageBuilder(natsConn),
			messaging.NewNatsSubscriber(natsConn),
			service.ServiceConfig{Backend: service.BackendCentralized},
		), nil
	}
}

func p2pFactory(env environment) service.AdapterFactory {
	return func(ctx context.Context) (domain.MeetingService, error) {
		peer := env.PeerID
		if peer == "" {
			peer = uuid.New().String()
		}

		manager := p2p.NewSessionManager(peer, func(ctx context.Context, room, peer string) (p2p.Transport, error) {
			return p2p.NewSignalingClient(ctx, env.SignalingURL, room, peer)
		})
		return service.NewP2PService(peer, manager), nil
	}
}
