// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package mocks provides testify mocks for the domain interfaces.
package mocks

import (
	"context"

	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/stretchr/testify/mock"
)

// MockMeetingRepository is a mock implementation of domain.MeetingRepository.
type MockMeetingRepository struct {
	mock.Mock
}

func (m *MockMeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	args := m.Called(ctx, meeting)
	return args.Error(0)
}

func (m *MockMeetingRepository) Get(ctx context.Context, meetingUID string) (*models.Meeting, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) GetWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).(*models.Meeting), args.Get(1).(uint64), args.Error(2)
}

func (m *MockMeetingRepository) GetByCode(ctx context.Context, code string) (*models.Meeting, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockMeetingRepository) Update(ctx context.Context, meeting *models.Meeting, revision uint64) error {
	args := m.Called(ctx, meeting, revision)
	return args.Error(0)
}

func (m *MockMeetingRepository) ListAll(ctx context.Context) ([]*models.Meeting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Meeting), args.Error(1)
}

// MockParticipantRepository is a mock implementation of domain.ParticipantRepository.
type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *MockParticipantRepository) Get(ctx context.Context, meetingUID, participantUID string) (*models.Participant, error) {
	args := m.Called(ctx, meetingUID, participantUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Participant), args.Error(1)
}

func (m *MockParticipantRepository) GetWithRevision(ctx context.Context, meetingUID, participantUID string) (*models.Participant, uint64, error) {
	args := m.Called(ctx, meetingUID, participantUID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).(*models.Participant), args.Get(1).(uint64), args.Error(2)
}

func (m *MockParticipantRepository) Update(ctx context.Context, participant *models.Participant, revision uint64) error {
	args := m.Called(ctx, participant, revision)
	return args.Error(0)
}

func (m *MockParticipantRepository) ListByMeeting(ctx context.Context, meetingUID string, includeInactive bool) ([]*models.Participant, error) {
	args := m.Called(ctx, meetingUID, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Participant), args.Error(1)
}

// MockQueueRepository is a mock implementation of domain.QueueRepository.
type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Get(ctx context.Context, meetingUID string) ([]*models.QueueItem, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QueueItem), args.Error(1)
}

func (m *MockQueueRepository) GetWithRevision(ctx context.Context, meetingUID string) ([]*models.QueueItem, uint64, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).([]*models.QueueItem), args.Get(1).(uint64), args.Error(2)
}

func (m *MockQueueRepository) Put(ctx context.Context, meetingUID string, items []*models.QueueItem) error {
	args := m.Called(ctx, meetingUID, items)
	return args.Error(0)
}

func (m *MockQueueRepository) Update(ctx context.Context, meetingUID string, items []*models.QueueItem, revision uint64) error {
	args := m.Called(ctx, meetingUID, items, revision)
	return args.Error(0)
}

func (m *MockQueueRepository) Purge(ctx context.Context, meetingUID string) error {
	args := m.Called(ctx, meetingUID)
	return args.Error(0)
}
