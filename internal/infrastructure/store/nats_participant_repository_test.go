// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"
	"time"

	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParticipant(meetingUID, uid, name string, active bool) *models.Participant {
	return &models.Participant{
		UID:        uid,
		MeetingUID: meetingUID,
		Name:       name,
		JoinedAt:   time.Now().UTC(),
		IsActive:   active,
	}
}

func TestNatsParticipantRepository_ListByMeeting(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsParticipantRepository(NewMockNatsKeyValue())

	require.NoError(t, repo.Create(ctx, testParticipant("meeting-1", "p1", "Alice", true)))
	require.NoError(t, repo.Create(ctx, testParticipant("meeting-1", "p2", "Bob", false)))
	require.NoError(t, repo.Create(ctx, testParticipant("meeting-2", "p3", "Carol", true)))

	active, err := repo.ListByMeeting(ctx, "meeting-1", false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Alice", active[0].Name)

	all, err := repo.ListByMeeting(ctx, "meeting-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNatsParticipantRepository_SoftDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsParticipantRepository(NewMockNatsKeyValue())

	require.NoError(t, repo.Create(ctx, testParticipant("meeting-1", "p1", "Alice", true)))

	participant, revision, err := repo.GetWithRevision(ctx, "meeting-1", "p1")
	require.NoError(t, err)

	participant.IsActive = false
	require.NoError(t, repo.Update(ctx, participant, revision))

	got, err := repo.Get(ctx, "meeting-1", "p1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
