// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/mocks"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/infrastructure/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *CentralizedService {
	t.Helper()

	builder := &mocks.MockMessageBuilder{}
	builder.On("SendParticipantJoined", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendParticipantLeft", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendParticipantsUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendQueueUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendNextSpeaker", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	builder.On("SendTitleUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	return NewCentralizedService(
		store.NewNatsMeetingRepository(store.NewMockNatsKeyValue()),
		store.NewNatsParticipantRepository(store.NewMockNatsKeyValue()),
		store.NewNatsQueueRepository(store.NewMockNatsKeyValue()),
		builder,
		&mocks.MockMessageSubscriber{},
		ServiceConfig{Backend: BackendCentralized},
	)
}

func mustCreateMeeting(t *testing.T, svc *CentralizedService) *models.Meeting {
	t.Helper()
	meeting, err := svc.CreateMeeting(context.Background(), "Weekly Sync", "Dana", "")
	require.NoError(t, err)
	return meeting
}

func mustJoin(t *testing.T, svc *CentralizedService, code, name string) *models.Participant {
	t.Helper()
	participant, err := svc.JoinMeeting(context.Background(), code, name, false)
	require.NoError(t, err)
	return participant
}

func queuePositions(t *testing.T, svc *CentralizedService, meetingUID string) map[string]int {
	t.Helper()
	items, err := svc.queueRepository.Get(context.Background(), meetingUID)
	require.NoError(t, err)
	positions := make(map[string]int, len(items))
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		positions[item.ParticipantUID] = item.Position
		assert.False(t, seen[item.Position], "duplicate position %d", item.Position)
		assert.GreaterOrEqual(t, item.Position, 1)
		assert.LessOrEqual(t, item.Position, len(items))
		assert.Equal(t, item.Position == 1, item.IsSpeaking)
		seen[item.Position] = true
	}
	return positions
}

func TestCreateMeeting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	meeting := mustCreateMeeting(t, svc)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, meeting.Code)
	assert.True(t, meeting.IsActive)

	state, err := svc.GetMeeting(ctx, meeting.Code)
	require.NoError(t, err)
	assert.Equal(t, meeting.UID, state.Meeting.UID)
	assert.Empty(t, state.Participants)
	assert.Empty(t, state.Queue)
}

func TestCreateMeeting_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name            string
		title           string
		facilitatorName string
	}{
		{name: "title too short", title: "ab", facilitatorName: "Dana"},
		{name: "empty facilitator", title: "Weekly Sync", facilitatorName: ""},
		{name: "facilitator has invalid characters", title: "Weekly Sync", facilitatorName: "Dana<script>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateMeeting(ctx, tc.title, tc.facilitatorName, "")
			require.Error(t, err)
			assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		})
	}
}

func TestGetMeeting_CodeIsCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	meeting := mustCreateMeeting(t, svc)

	state, err := svc.GetMeeting(context.Background(), "  "+meeting.Code+" ")
	require.NoError(t, err)
	assert.Equal(t, meeting.UID, state.Meeting.UID)
}

func TestJoinMeeting_FacilitatorNameMustMatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)

	_, err := svc.JoinMeeting(ctx, meeting.Code, "Mallory", true)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeUnauthorized, domain.GetErrorType(err))

	// Case-insensitive match is allowed.
	facilitator, err := svc.JoinMeeting(ctx, meeting.Code, "dana", true)
	require.NoError(t, err)
	assert.True(t, facilitator.IsFacilitator)
}

func TestJoinQueue_AppendsAtEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)

	alice := mustJoin(t, svc, meeting.Code, "Alice")
	bob := mustJoin(t, svc, meeting.Code, "Bob")

	first, err := svc.JoinQueue(ctx, meeting.UID, alice.UID, models.QueueTypeSpeak)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)

	second, err := svc.JoinQueue(ctx, meeting.UID, bob.UID, models.QueueTypeDirectResponse)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Position)

	positions := queuePositions(t, svc, meeting.UID)
	assert.Equal(t, map[string]int{alice.UID: 1, bob.UID: 2}, positions)
}

func TestJoinQueue_DuplicateEntryConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)
	alice := mustJoin(t, svc, meeting.Code, "Alice")

	_, err := svc.JoinQueue(ctx, meeting.UID, alice.UID, models.QueueTypeSpeak)
	require.NoError(t, err)

	_, err = svc.JoinQueue(ctx, meeting.UID, alice.UID, models.QueueTypeClarification)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
}

func TestLeaveQueue_ClosesGap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)

	alice := mustJoin(t, svc, meeting.Code, "Alice")
	bob := mustJoin(t, svc, meeting.Code, "Bob")
	carol := mustJoin(t, svc, meeting.Code, "Carol")
	for _, p := range []*models.Participant{alice, bob, carol} {
		_, err := svc.JoinQueue(ctx, meeting.UID, p.UID, models.QueueTypeSpeak)
		require.NoError(t, err)
	}

	require.NoError(t, svc.LeaveQueue(ctx, meeting.UID, bob.UID))

	positions := queuePositions(t, svc, meeting.UID)
	assert.Equal(t, map[string]int{alice.UID: 1, carol.UID: 2}, positions)
}

func TestNextSpeaker(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)

	alice := mustJoin(t, svc, meeting.Code, "Alice")
	bob := mustJoin(t, svc, meeting.Code, "Bob")
	for _, p := range []*models.Participant{alice, bob} {
		_, err := svc.JoinQueue(ctx, meeting.UID, p.UID, models.QueueTypeSpeak)
		require.NoError(t, err)
	}

	popped, err := svc.NextSpeaker(ctx, meeting.UID)
	require.NoError(t, err)
	assert.Equal(t, alice.UID, popped.ParticipantUID)

	positions := queuePositions(t, svc, meeting.UID)
	assert.Equal(t, map[string]int{bob.UID: 1}, positions)
}

func TestNextSpeaker_EmptyQueue(t *testing.T) {
	svc := newTestService(t)
	meeting := mustCreateMeeting(t, svc)

	_, err := svc.NextSpeaker(context.Background(), meeting.UID)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestReorderQueueItem(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)

	alice := mustJoin(t, svc, meeting.Code, "Alice")
	bob := mustJoin(t, svc, meeting.Code, "Bob")
	carol := mustJoin(t, svc, meeting.Code, "Carol")
	for _, p := range []*models.Participant{alice, bob, carol} {
		_, err := svc.JoinQueue(ctx, meeting.UID, p.UID, models.QueueTypeSpeak)
		require.NoError(t, err)
	}

	require.NoError(t, svc.ReorderQueueItem(ctx, meeting.UID, carol.UID, 1))
	positions := queuePositions(t, svc, meeting.UID)
	assert.Equal(t, map[string]int{carol.UID: 1, alice.UID: 2, bob.UID: 3}, positions)

	// Moving to the current position succeeds and changes nothing.
	require.NoError(t, svc.ReorderQueueItem(ctx, meeting.UID, carol.UID, 1))
	assert.Equal(t, positions, queuePositions(t, svc, meeting.UID))

	err := svc.ReorderQueueItem(ctx, meeting.UID, carol.UID, 4)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))

	err = svc.ReorderQueueItem(ctx, meeting.UID, carol.UID, 0)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestRemoveParticipant_SnapshotAndRestore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)

	alice := mustJoin(t, svc, meeting.Code, "Alice")
	bob := mustJoin(t, svc, meeting.Code, "Bob")
	for _, p := range []*models.Participant{alice, bob} {
		_, err := svc.JoinQueue(ctx, meeting.UID, p.UID, models.QueueTypeSpeak)
		require.NoError(t, err)
	}

	snapshot, err := svc.RemoveParticipant(ctx, meeting.UID, alice.UID)
	require.NoError(t, err)
	assert.Equal(t, alice.UID, snapshot.Participant.UID)
	require.NotNil(t, snapshot.QueueItem)
	assert.Equal(t, 1, snapshot.QueuePosition)

	state, err := svc.GetMeeting(ctx, meeting.Code)
	require.NoError(t, err)
	require.Len(t, state.Participants, 1)
	assert.Equal(t, bob.UID, state.Participants[0].UID)

	require.NoError(t, svc.RestoreParticipant(ctx, meeting.UID, alice.UID))
	state, err = svc.GetMeeting(ctx, meeting.Code)
	require.NoError(t, err)
	assert.Len(t, state.Participants, 2)
}

func TestClearAndRestoreQueue(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)

	alice := mustJoin(t, svc, meeting.Code, "Alice")
	bob := mustJoin(t, svc, meeting.Code, "Bob")
	for _, p := range []*models.Participant{alice, bob} {
		_, err := svc.JoinQueue(ctx, meeting.UID, p.UID, models.QueueTypeSpeak)
		require.NoError(t, err)
	}

	before, err := svc.queueRepository.Get(ctx, meeting.UID)
	require.NoError(t, err)

	require.NoError(t, svc.ClearQueue(ctx, meeting.UID))
	items, err := svc.queueRepository.Get(ctx, meeting.UID)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, svc.RestoreQueue(ctx, meeting.UID, before))
	positions := queuePositions(t, svc, meeting.UID)
	assert.Equal(t, map[string]int{alice.UID: 1, bob.UID: 2}, positions)
}

func TestEndMeeting_RejectsFurtherMutations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)
	alice := mustJoin(t, svc, meeting.Code, "Alice")

	require.NoError(t, svc.EndMeeting(ctx, meeting.UID))

	_, err := svc.JoinQueue(ctx, meeting.UID, alice.UID, models.QueueTypeSpeak)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))

	_, err = svc.JoinMeeting(ctx, meeting.Code, "Bob", false)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestCanRejoinAsFacilitator(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)

	ok, err := svc.CanRejoinAsFacilitator(ctx, meeting.Code, "DANA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanRejoinAsFacilitator(ctx, meeting.Code, "Alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateParticipantName_UpdatesQueueEntry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meeting := mustCreateMeeting(t, svc)
	alice := mustJoin(t, svc, meeting.Code, "Alice")

	_, err := svc.JoinQueue(ctx, meeting.UID, alice.UID, models.QueueTypeSpeak)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateParticipantName(ctx, meeting.UID, alice.UID, "Alicia"))

	items, err := svc.queueRepository.Get(ctx, meeting.UID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Alicia", items[0].ParticipantName)
}

func TestCreateMeeting_RetriesCollidingCodes(t *testing.T) {
	meetingRepo := &mocks.MockMeetingRepository{}
	queueRepo := &mocks.MockQueueRepository{}

	// The first two drawn codes are taken, the third is free.
	meetingRepo.On("CodeExists", mock.Anything, mock.Anything).Return(true, nil).Twice()
	meetingRepo.On("CodeExists", mock.Anything, mock.Anything).Return(false, nil).Once()
	meetingRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	queueRepo.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewCentralizedService(
		meetingRepo,
		&mocks.MockParticipantRepository{},
		queueRepo,
		&mocks.MockMessageBuilder{},
		&mocks.MockMessageSubscriber{},
		ServiceConfig{Backend: BackendCentralized},
	)

	meeting, err := svc.CreateMeeting(context.Background(), "Weekly Sync", "Dana", "")
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, meeting.Code)

	// Collided draws leave no trace: exactly one meeting row and one queue
	// document were written.
	meetingRepo.AssertNumberOfCalls(t, "CodeExists", 3)
	meetingRepo.AssertNumberOfCalls(t, "Create", 1)
	queueRepo.AssertNumberOfCalls(t, "Put", 1)
}

func TestCreateMeeting_CodeGenerationExhaustion(t *testing.T) {
	meetingRepo := &mocks.MockMeetingRepository{}
	meetingRepo.On("CodeExists", mock.Anything, mock.Anything).Return(true, nil)

	svc := NewCentralizedService(
		meetingRepo,
		&mocks.MockParticipantRepository{},
		&mocks.MockQueueRepository{},
		&mocks.MockMessageBuilder{},
		&mocks.MockMessageSubscriber{},
		ServiceConfig{Backend: BackendCentralized},
	)

	_, err := svc.CreateMeeting(context.Background(), "Weekly Sync", "Dana", "")
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
	meetingRepo.AssertNumberOfCalls(t, "CodeExists", 5)
	meetingRepo.AssertNotCalled(t, "Create")
}

func TestRefetchDedupeIsPerServiceInstance(t *testing.T) {
	release := make(chan struct{})
	blocked := make(chan struct{})

	slowRepo := &mocks.MockParticipantRepository{}
	slowRepo.On("ListByMeeting", mock.Anything, "meeting-1", false).
		Run(func(mock.Arguments) { close(blocked); <-release }).
		Return([]*models.Participant{{UID: "alice"}}, nil)

	fastRepo := &mocks.MockParticipantRepository{}
	fastRepo.On("ListByMeeting", mock.Anything, "meeting-1", false).
		Return([]*models.Participant{{UID: "bob"}}, nil)

	newService := func(repo domain.ParticipantRepository) *CentralizedService {
		return NewCentralizedService(
			&mocks.MockMeetingRepository{},
			repo,
			&mocks.MockQueueRepository{},
			&mocks.MockMessageBuilder{},
			&mocks.MockMessageSubscriber{},
			ServiceConfig{Backend: BackendCentralized},
		)
	}
	slow := newService(slowRepo)
	fast := newService(fastRepo)

	go func() { _, _ = slow.refetchParticipants(context.Background(), "meeting-1") }()
	<-blocked
	defer close(release)

	// A re-fetch on another instance with the same dedupe key must not join
	// the in-flight call above.
	participants, err := fast.refetchParticipants(context.Background(), "meeting-1")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "bob", participants[0].UID)
}
