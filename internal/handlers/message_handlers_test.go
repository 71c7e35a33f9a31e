// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/guitarbeat/stack-master-tool/internal/domain/mocks"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/infrastructure/store"
	"github.com/guitarbeat/stack-master-tool/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newHandlerFixture(t *testing.T) (*MeetingHandler, *models.Meeting) {
	t.Helper()

	builder := &mocks.MockMessageBuilder{}
	builder.On("SendParticipantJoined", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendParticipantLeft", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendParticipantsUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendQueueUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendNextSpeaker", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendTitleUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := service.NewCentralizedService(
		store.NewNatsMeetingRepository(store.NewMockNatsKeyValue()),
		store.NewNatsParticipantRepository(store.NewMockNatsKeyValue()),
		store.NewNatsQueueRepository(store.NewMockNatsKeyValue()),
		builder,
		&mocks.MockMessageSubscriber{},
		service.ServiceConfig{Backend: service.BackendCentralized},
	)

	meeting, err := svc.CreateMeeting(context.Background(), "Weekly Sync", "Dana", "")
	require.NoError(t, err)

	return NewMeetingHandler(svc), meeting
}

func requestMessage(t *testing.T, subject string, payload any) (*mocks.MockMessage, *[][]byte) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var responses [][]byte
	msg := &mocks.MockMessage{}
	msg.On("Subject").Return(subject)
	msg.On("Data").Return(data)
	msg.On("HasReply").Return(true)
	msg.On("Respond", mock.Anything).Run(func(args mock.Arguments) {
		responses = append(responses, args.Get(0).([]byte))
	}).Return(nil)

	return msg, &responses
}

func TestHandleJoinMeeting(t *testing.T) {
	handler, meeting := newHandlerFixture(t)

	msg, responses := requestMessage(t, models.JoinMeetingSubject, models.JoinMeetingMessage{
		Code: meeting.Code,
		Name: "Alice",
	})
	handler.HandleMessage(context.Background(), msg)

	require.Len(t, *responses, 1)
	var joined models.MeetingJoinedMessage
	require.NoError(t, json.Unmarshal((*responses)[0], &joined))
	assert.Equal(t, meeting.UID, joined.Meeting.UID)
	assert.Equal(t, "Alice", joined.Participant.Name)
	require.Len(t, joined.Participants, 1)
}

func TestHandleJoinQueue(t *testing.T) {
	handler, meeting := newHandlerFixture(t)
	ctx := context.Background()

	alice, err := handler.service.JoinMeeting(ctx, meeting.Code, "Alice", false)
	require.NoError(t, err)

	msg, responses := requestMessage(t, models.JoinQueueSubject, models.JoinQueueMessage{
		MeetingUID:     meeting.UID,
		ParticipantUID: alice.UID,
		Type:           models.QueueTypeSpeak,
	})
	handler.HandleMessage(ctx, msg)

	require.Len(t, *responses, 1)
	var item models.QueueItem
	require.NoError(t, json.Unmarshal((*responses)[0], &item))
	assert.Equal(t, 1, item.Position)
	assert.True(t, item.IsSpeaking)
}

func TestHandleNextSpeaker_EmptyQueueRepliesError(t *testing.T) {
	handler, meeting := newHandlerFixture(t)

	msg, responses := requestMessage(t, models.NextSpeakerSubject, models.NextSpeakerMessage{
		MeetingUID: meeting.UID,
	})
	handler.HandleMessage(context.Background(), msg)

	require.Len(t, *responses, 1)
	var errMsg models.ErrorMessage
	require.NoError(t, json.Unmarshal((*responses)[0], &errMsg))
	assert.Equal(t, "not-found", errMsg.Code)
}

func TestHandleUnknownSubject(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	msg := &mocks.MockMessage{}
	msg.On("Subject").Return("stackmaster.unknown")
	handler.HandleMessage(context.Background(), msg)

	msg.AssertNotCalled(t, "Respond", mock.Anything)
}

func TestHandleMalformedPayload(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	var responses [][]byte
	msg := &mocks.MockMessage{}
	msg.On("Subject").Return(models.JoinQueueSubject)
	msg.On("Data").Return([]byte("{not json"))
	msg.On("HasReply").Return(true)
	msg.On("Respond", mock.Anything).Run(func(args mock.Arguments) {
		responses = append(responses, args.Get(0).([]byte))
	}).Return(nil)

	handler.HandleMessage(context.Background(), msg)

	require.Len(t, responses, 1)
	var errMsg models.ErrorMessage
	require.NoError(t, json.Unmarshal(responses[0], &errMsg))
	assert.Equal(t, "validation", errMsg.Code)
}
