// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/stretchr/testify/mock"
)

// MockMessageBuilder is a mock implementation of domain.MessageBuilder.
type MockMessageBuilder struct {
	mock.Mock
}

func (m *MockMessageBuilder) SendParticipantJoined(ctx context.Context, meetingUID string, participant *models.Participant) error {
	args := m.Called(ctx, meetingUID, participant)
	return args.Error(0)
}

func (m *MockMessageBuilder) SendParticipantLeft(ctx context.Context, meetingUID string, participant *models.Participant) error {
	args := m.Called(ctx, meetingUID, participant)
	return args.Error(0)
}

func (m *MockMessageBuilder) SendParticipantsUpdated(ctx context.Context, meetingUID string, participants []*models.Participant) error {
	args := m.Called(ctx, meetingUID, participants)
	return args.Error(0)
}

func (m *MockMessageBuilder) SendQueueUpdated(ctx context.Context, meetingUID string, items []*models.QueueItem) error {
	args := m.Called(ctx, meetingUID, items)
	return args.Error(0)
}

func (m *MockMessageBuilder) SendNextSpeaker(ctx context.Context, meetingUID string, item *models.QueueItem) error {
	args := m.Called(ctx, meetingUID, item)
	return args.Error(0)
}

func (m *MockMessageBuilder) SendTitleUpdated(ctx context.Context, meetingUID string, title string) error {
	args := m.Called(ctx, meetingUID, title)
	return args.Error(0)
}

// MockMessageSubscriber is a mock implementation of domain.MessageSubscriber.
type MockMessageSubscriber struct {
	mock.Mock
}

func (m *MockMessageSubscriber) Subscribe(subject string, handler func(subject string, data []byte)) (domain.Unsubscriber, error) {
	args := m.Called(subject, handler)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Unsubscriber), args.Error(1)
}

// MockUnsubscriber is a mock implementation of domain.Unsubscriber.
type MockUnsubscriber struct {
	mock.Mock
}

func (m *MockUnsubscriber) Unsubscribe() error {
	args := m.Called()
	return args.Error(0)
}

// MockMessage is a mock implementation of domain.Message.
type MockMessage struct {
	mock.Mock
}

func (m *MockMessage) Subject() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockMessage) Data() []byte {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]byte)
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}
