// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"testing"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/mocks"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/infrastructure/store"
	"github.com/guitarbeat/stack-master-tool/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     domain.MeetingService
	meeting *models.Meeting
	session *FacilitatorSession
}

func newFixture(t *testing.T) *fixture {
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

	return &fixture{
		svc:     svc,
		meeting: meeting,
		session: NewFacilitatorSession(svc, meeting.UID),
	}
}

func (f *fixture) join(t *testing.T, name string) *models.Participant {
	t.Helper()
	p, err := f.svc.JoinMeeting(context.Background(), f.meeting.Code, name, false)
	require.NoError(t, err)
	return p
}

func (f *fixture) enqueue(t *testing.T, p *models.Participant) {
	t.Helper()
	_, err := f.svc.JoinQueue(context.Background(), f.meeting.UID, p.UID, models.QueueTypeSpeak)
	require.NoError(t, err)
}

func (f *fixture) queue(t *testing.T) []*models.QueueItem {
	t.Helper()
	state, err := f.svc.GetMeeting(context.Background(), f.meeting.Code)
	require.NoError(t, err)
	return state.Queue
}

func TestUndoRemoveParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.join(t, "Alice")
	bob := f.join(t, "Bob")
	f.enqueue(t, alice)
	f.enqueue(t, bob)

	snapshot, err := f.session.RemoveParticipant(ctx, alice.UID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.QueuePosition)
	require.Len(t, f.queue(t), 1)

	action, err := f.session.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.UndoKindRemove, action.Kind)

	items := f.queue(t)
	require.Len(t, items, 2)
	assert.Equal(t, alice.UID, items[0].ParticipantUID)
	assert.Equal(t, bob.UID, items[1].ParticipantUID)

	state, err := f.svc.GetMeeting(ctx, f.meeting.Code)
	require.NoError(t, err)
	assert.Len(t, state.Participants, 2)
}

func TestUndoNextSpeaker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.join(t, "Alice")
	bob := f.join(t, "Bob")
	f.enqueue(t, alice)
	f.enqueue(t, bob)

	popped, err := f.session.NextSpeaker(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice.UID, popped.ParticipantUID)
	require.Len(t, f.queue(t), 1)

	_, err = f.session.Undo(ctx)
	require.NoError(t, err)

	items := f.queue(t)
	require.Len(t, items, 2)
	assert.Equal(t, alice.UID, items[0].ParticipantUID)
	assert.True(t, items[0].IsSpeaking)
}

func TestUndoClearQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.join(t, "Alice")
	bob := f.join(t, "Bob")
	f.enqueue(t, alice)
	f.enqueue(t, bob)

	require.NoError(t, f.session.ClearQueue(ctx))
	assert.Empty(t, f.queue(t))

	_, err := f.session.Undo(ctx)
	require.NoError(t, err)
	assert.Len(t, f.queue(t), 2)
}

func TestUndoHistoryIsBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	participants := make([]*models.Participant, 0, 7)
	for _, name := range []string{"P-one", "P-two", "P-three", "P-four", "P-five", "P-six", "P-seven"} {
		p := f.join(t, name)
		f.enqueue(t, p)
		participants = append(participants, p)
	}

	// Seven pops, only the last five stay undoable.
	for range participants {
		_, err := f.session.NextSpeaker(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, f.session.HistoryLen())

	for i := 0; i < 5; i++ {
		_, err := f.session.Undo(ctx)
		require.NoError(t, err)
	}

	_, err := f.session.Undo(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestUndoEmptyHistory(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Undo(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}
