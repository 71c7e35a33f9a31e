// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
)

// MeetingRepository defines the interface for meeting storage operations.
// This interface can be implemented by different storage backends.
type MeetingRepository interface {
	Create(ctx context.Context, meeting *models.Meeting) error
	Get(ctx context.Context, meetingUID string) (*models.Meeting, error)
	GetWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error)
	GetByCode(ctx context.Context, code string) (*models.Meeting, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, meeting *models.Meeting, revision uint64) error
	ListAll(ctx context.Context) ([]*models.Meeting, error)
}

// ParticipantRepository defines the interface for participant storage
// operations. Participants are soft-deleted: deactivation keeps the record so
// undo can restore it.
type ParticipantRepository interface {
	Create(ctx context.Context, participant *models.Participant) error
	Get(ctx context.Context, meetingUID, participantUID string) (*models.Participant, error)
	GetWithRevision(ctx context.Context, meetingUID, participantUID string) (*models.Participant, uint64, error)
	Update(ctx context.Context, participant *models.Participant, revision uint64) error
	ListByMeeting(ctx context.Context, meetingUID string, includeInactive bool) ([]*models.Participant, error)
}

// QueueRepository stores a meeting's live queue as one document so a
// renumbering mutation is a single revision-checked write.
type QueueRepository interface {
	// Get returns the live queue, or an empty slice when the meeting has no
	// queue document yet.
	Get(ctx context.Context, meetingUID string) ([]*models.QueueItem, error)
	GetWithRevision(ctx context.Context, meetingUID string) ([]*models.QueueItem, uint64, error)
	// Put writes the queue document unconditionally; used once at meeting
	// creation so every later mutation can go through Update.
	Put(ctx context.Context, meetingUID string, items []*models.QueueItem) error
	// Update replaces the queue document with optimistic concurrency control;
	// a revision mismatch surfaces as a conflict error.
	Update(ctx context.Context, meetingUID string, items []*models.QueueItem, revision uint64) error
	Purge(ctx context.Context, meetingUID string) error
}
