// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
)

// MeetingCallbacks is the callback shape every realtime subscription exposes,
// regardless of which backend produced the change.
type MeetingCallbacks struct {
	OnParticipantsChanged func(participants []*models.Participant)
	OnQueueChanged        func(queue []*models.QueueItem)
	OnTitleChanged        func(title string)
	OnError               func(err error)
}

// UnsubscribeFunc stops a realtime subscription. Calling it more than once is
// a no-op, never an error.
type UnsubscribeFunc func()

// MeetingService is the unified contract both backends satisfy. The caller
// never branches on backend type; the active adapter is selected once by
// configuration.
type MeetingService interface {
	// Meeting lifecycle
	CreateMeeting(ctx context.Context, title, facilitatorName, facilitatorUID string) (*models.Meeting, error)
	GetMeeting(ctx context.Context, code string) (*models.MeetingState, error)
	ListMeetings(ctx context.Context) ([]*models.Meeting, error)
	UpdateMeetingTitle(ctx context.Context, meetingUID, title string) error
	EndMeeting(ctx context.Context, meetingUID string) error

	// Participants
	JoinMeeting(ctx context.Context, code, name string, isFacilitator bool) (*models.Participant, error)
	UpdateParticipantName(ctx context.Context, meetingUID, participantUID, name string) error
	RemoveParticipant(ctx context.Context, meetingUID, participantUID string) (*models.ParticipantSnapshot, error)
	RestoreParticipant(ctx context.Context, meetingUID, participantUID string) error
	LeaveMeeting(ctx context.Context, meetingUID, participantUID string) error
	CanRejoinAsFacilitator(ctx context.Context, code, name string) (bool, error)

	// Queue operations
	JoinQueue(ctx context.Context, meetingUID, participantUID string, queueType models.QueueType) (*models.QueueItem, error)
	LeaveQueue(ctx context.Context, meetingUID, participantUID string) error
	NextSpeaker(ctx context.Context, meetingUID string) (*models.QueueItem, error)
	ReorderQueueItem(ctx context.Context, meetingUID, participantUID string, newPosition int) error
	ClearQueue(ctx context.Context, meetingUID string) error
	RestoreQueue(ctx context.Context, meetingUID string, items []*models.QueueItem) error

	// Realtime propagation
	SubscribeToMeeting(ctx context.Context, meetingUID string, callbacks MeetingCallbacks) (UnsubscribeFunc, error)

	// Close tears down subscriptions and connections held by the adapter.
	Close() error
}
