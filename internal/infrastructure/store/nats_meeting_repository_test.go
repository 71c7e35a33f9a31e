// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"
	"time"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeeting(uid, code string) *models.Meeting {
	return &models.Meeting{
		UID:             uid,
		Code:            code,
		Title:           "Weekly Sync",
		FacilitatorName: "Dana",
		CreatedAt:       time.Now().UTC(),
		IsActive:        true,
	}
}

func TestNatsMeetingRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRepository(NewMockNatsKeyValue())

	meeting := testMeeting("meeting-1", "ABC123")
	require.NoError(t, repo.Create(ctx, meeting))

	got, err := repo.Get(ctx, "meeting-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", got.Code)
	assert.Equal(t, "Weekly Sync", got.Title)
	assert.True(t, got.IsActive)
}

func TestNatsMeetingRepository_GetByCode(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRepository(NewMockNatsKeyValue())

	require.NoError(t, repo.Create(ctx, testMeeting("meeting-1", "ABC123")))

	tests := []struct {
		name    string
		code    string
		wantUID string
		wantErr bool
	}{
		{
			name:    "existing code",
			code:    "ABC123",
			wantUID: "meeting-1",
		},
		{
			name:    "lookup is case-insensitive",
			code:    "abc123",
			wantUID: "meeting-1",
		},
		{
			name:    "unknown code",
			code:    "ZZZ999",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.GetByCode(ctx, tc.code)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantUID, got.UID)
		})
	}
}

func TestNatsMeetingRepository_CodeExists(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRepository(NewMockNatsKeyValue())

	require.NoError(t, repo.Create(ctx, testMeeting("meeting-1", "ABC123")))

	exists, err := repo.CodeExists(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.CodeExists(ctx, "ZZZ999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNatsMeetingRepository_UpdateRevisionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRepository(NewMockNatsKeyValue())

	require.NoError(t, repo.Create(ctx, testMeeting("meeting-1", "ABC123")))

	meeting, revision, err := repo.GetWithRevision(ctx, "meeting-1")
	require.NoError(t, err)

	meeting.Title = "Renamed Sync"
	require.NoError(t, repo.Update(ctx, meeting, revision))

	// Re-using the stale revision must surface a conflict.
	meeting.Title = "Stale Write"
	err = repo.Update(ctx, meeting, revision)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
}

func TestNatsMeetingRepository_ListAllSkipsCodeIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRepository(NewMockNatsKeyValue())

	require.NoError(t, repo.Create(ctx, testMeeting("meeting-1", "ABC123")))
	require.NoError(t, repo.Create(ctx, testMeeting("meeting-2", "DEF456")))

	meetings, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, meetings, 2)
	for _, m := range meetings {
		assert.NotEmpty(t, m.Title)
	}
}
