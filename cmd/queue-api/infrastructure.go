// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/handlers"
	"github.com/guitarbeat/stack-master-tool/internal/infrastructure/messaging"
	"github.com/guitarbeat/stack-master-tool/internal/infrastructure/store"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// setupNATS connects to the NATS server with graceful shutdown wiring: the
// closed handler keeps the shutdown WaitGroup from releasing until in-flight
// messages drain.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)

	natsConn, err := nats.Connect(
		env.NatsURL,
		nats.Name("stack-master-queue-api"),
		nats.Timeout(10*time.Second),
		nats.DrainTimeout(25*time.Second),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.InfoContext(ctx, "connected to NATS server", "url", env.NatsURL)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.ErrorContext(ctx, "NATS async error",
					logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue)
				return
			}
			slog.ErrorContext(ctx, "NATS async error", logging.ErrKey, err)
		}),
		nats.ClosedHandler(func(conn *nats.Conn) {
			slog.InfoContext(ctx, "NATS connection closed", logging.ErrKey, conn.LastError())
			gracefulCloseWG.Done()
			done <- os.Interrupt
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, err
	}

	return natsConn, nil
}

// repositories holds the key-value backed repositories for the service.
type repositories struct {
	Meeting     *store.NatsMeetingRepository
	Participant *store.NatsParticipantRepository
	Queue       *store.NatsQueueRepository
}

// getKeyValueStores binds the JetStream key-value buckets, creating them when
// they do not exist yet.
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn) (*repositories, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]jetstream.KeyValue, 3)
	for _, bucket := range []string{
		store.KVStoreNameMeetings,
		store.KVStoreNameParticipants,
		store.KVStoreNameQueues,
	} {
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket: bucket,
		})
		if err != nil {
			return nil, err
		}
		buckets[bucket] = kv
	}

	return &repositories{
		Meeting:     store.NewNatsMeetingRepository(buckets[store.KVStoreNameMeetings]),
		Participant: store.NewNatsParticipantRepository(buckets[store.KVStoreNameParticipants]),
		Queue:       store.NewNatsQueueRepository(buckets[store.KVStoreNameQueues]),
	}, nil
}

// createNatsSubscriptions attaches the request handler to every request
// subject in the service queue group.
func createNatsSubscriptions(ctx context.Context, handler *handlers.MeetingHandler, natsConn *nats.Conn) error {
	subjects := []string{
		models.JoinMeetingSubject,
		models.JoinQueueSubject,
		models.LeaveQueueSubject,
		models.NextSpeakerSubject,
	}

	for _, subject := range subjects {
		_, err := natsConn.QueueSubscribe(subject, models.QueueServiceQueue, func(msg *nats.Msg) {
			handler.HandleMessage(ctx, &messaging.NatsMessage{Msg: msg})
		})
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "subscribed to NATS subject",
			"subject", subject, "queue", models.QueueServiceQueue)
	}

	return nil
}

// gracefulShutdown drains subscriptions and the HTTP server, then waits for
// the close handlers to release the WaitGroup.
func gracefulShutdown(httpShutdown func(ctx context.Context) error, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup, service domain.MeetingService, cancel context.CancelFunc) {
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpShutdown(shutdownCtx); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down HTTP server")
	}

	if err := service.Close(); err != nil {
		slog.With(logging.ErrKey, err).Error("error closing meeting service")
	}

	if natsConn != nil && !natsConn.IsClosed() {
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		}
	}

	cancel()
	gracefulCloseWG.Wait()
}
