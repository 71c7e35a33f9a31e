// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// ParticipantEventSender publishes participant membership changes for one
// meeting.
type ParticipantEventSender interface {
	SendParticipantJoined(ctx context.Context, meetingUID string, participant *models.Participant) error
	SendParticipantLeft(ctx context.Context, meetingUID string, participant *models.Participant) error
	SendParticipantsUpdated(ctx context.Context, meetingUID string, participants []*models.Participant) error
}

// QueueEventSender publishes queue changes for one meeting.
type QueueEventSender interface {
	SendQueueUpdated(ctx context.Context, meetingUID string, queue []*models.QueueItem) error
	SendNextSpeaker(ctx context.Context, meetingUID string, item *models.QueueItem) error
}

// MeetingEventSender publishes meeting metadata changes.
type MeetingEventSender interface {
	SendTitleUpdated(ctx context.Context, meetingUID, title string) error
}

// MessageBuilder composes all realtime event publications the centralized
// adapter produces after a mutation.
type MessageBuilder interface {
	ParticipantEventSender
	QueueEventSender
	MeetingEventSender
}

// Unsubscriber detaches one realtime subscription from its transport.
type Unsubscriber interface {
	Unsubscribe() error
}

// MessageSubscriber attaches a handler to every broadcast event of a subject
// pattern. Implementations deliver each message's subject and payload.
type MessageSubscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) (Unsubscriber, error)
}
