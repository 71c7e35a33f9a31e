// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package messaging publishes and subscribes to meeting events over NATS.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
	"github.com/nats-io/nats.go"
)

// INatsConn is the NATS connection interface the message builder needs. It
// matches *nats.Conn and allows for mocking in tests.
type INatsConn interface {
	IsConnected() bool
	Publish(subject string, data []byte) error
}

// MessageBuilder publishes meeting events to NATS subjects.
type MessageBuilder struct {
	NatsConn INatsConn
}

// NewMessageBuilder creates a message builder on top of a NATS connection.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{NatsConn: natsConn}
}

func (m *MessageBuilder) sendMessage(ctx context.Context, subject string, payload any) error {
	if m.NatsConn == nil || !m.NatsConn.IsConnected() {
		return domain.NewUnavailableError("NATS connection is not available")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "error marshaling message payload",
			logging.ErrKey, err, "subject", subject)
		return domain.NewInternalError("failed to marshal message payload", err)
	}

	if err := m.NatsConn.Publish(subject, data); err != nil {
		slog.ErrorContext(ctx, "error publishing message",
			logging.ErrKey, err, "subject", subject)
		return domain.NewInternalError("failed to publish message", err)
	}

	slog.DebugContext(ctx, "published message", "subject", subject)
	return nil
}

// SendParticipantJoined publishes a participant-joined event for the meeting.
func (m *MessageBuilder) SendParticipantJoined(ctx context.Context, meetingUID string, participant *models.Participant) error {
	return m.sendMessage(ctx,
		models.MeetingEventSubject(meetingUID, models.EventParticipantJoined),
		models.ParticipantEventMessage{MeetingUID: meetingUID, Participant: participant},
	)
}

// SendParticipantLeft publishes a participant-left event for the meeting.
func (m *MessageBuilder) SendParticipantLeft(ctx context.Context, meetingUID string, participant *models.Participant) error {
	return m.sendMessage(ctx,
		models.MeetingEventSubject(meetingUID, models.EventParticipantLeft),
		models.ParticipantEventMessage{MeetingUID: meetingUID, Participant: participant},
	)
}

// SendParticipantsUpdated publishes the full participant roster for the meeting.
func (m *MessageBuilder) SendParticipantsUpdated(ctx context.Context, meetingUID string, participants []*models.Participant) error {
	return m.sendMessage(ctx,
		models.MeetingEventSubject(meetingUID, models.EventParticipantsUpdated),
		models.ParticipantsUpdatedMessage{MeetingUID: meetingUID, Participants: participants},
	)
}

// SendQueueUpdated publishes the full speaking queue for the meeting.
func (m *MessageBuilder) SendQueueUpdated(ctx context.Context, meetingUID string, queue []*models.QueueItem) error {
	return m.sendMessage(ctx,
		models.MeetingEventSubject(meetingUID, models.EventQueueUpdated),
		models.QueueUpdatedMessage{MeetingUID: meetingUID, Queue: queue},
	)
}

// SendNextSpeaker publishes the item advanced to the floor for the meeting.
func (m *MessageBuilder) SendNextSpeaker(ctx context.Context, meetingUID string, item *models.QueueItem) error {
	return m.sendMessage(ctx,
		models.MeetingEventSubject(meetingUID, models.EventNextSpeaker),
		models.NextSpeakerEventMessage{MeetingUID: meetingUID, Item: item},
	)
}

// SendTitleUpdated publishes a title change for the meeting.
func (m *MessageBuilder) SendTitleUpdated(ctx context.Context, meetingUID, title string) error {
	return m.sendMessage(ctx,
		models.MeetingEventSubject(meetingUID, models.EventTitleUpdated),
		models.TitleUpdatedMessage{MeetingUID: meetingUID, Title: title},
	)
}

// NatsSubscriber adapts a *nats.Conn to domain.MessageSubscriber.
type NatsSubscriber struct {
	Conn *nats.Conn
}

// NewNatsSubscriber creates a subscriber on top of a NATS connection.
func NewNatsSubscriber(conn *nats.Conn) *NatsSubscriber {
	return &NatsSubscriber{Conn: conn}
}

// Subscribe attaches the handler to a subject, wildcards included.
func (s *NatsSubscriber) Subscribe(subject string, handler func(subject string, data []byte)) (domain.Unsubscriber, error) {
	sub, err := s.Conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, domain.NewInternalError("failed to subscribe to subject", err)
	}
	return sub, nil
}

// NatsMessage adapts a *nats.Msg to domain.Message.
type NatsMessage struct {
	Msg *nats.Msg
}

// Subject returns the message subject.
func (m *NatsMessage) Subject() string {
	return m.Msg.Subject
}

// Data returns the message payload.
func (m *NatsMessage) Data() []byte {
	return m.Msg.Data
}

// Respond replies to the message if a reply subject is set.
func (m *NatsMessage) Respond(data []byte) error {
	return m.Msg.Respond(data)
}

// HasReply reports whether the message expects a response.
func (m *NatsMessage) HasReply() bool {
	return m.Msg.Reply != ""
}
