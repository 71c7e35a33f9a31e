// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
)

// NatsParticipantRepository stores participants in a NATS KV bucket, keyed by
// "<meetingUID>/<participantUID>" so a meeting's roster is a prefix scan.
type NatsParticipantRepository struct {
	*NatsBaseRepository[models.Participant]
}

// NewNatsParticipantRepository creates a new NATS KV participants repository.
func NewNatsParticipantRepository(kvStore INatsKeyValue) *NatsParticipantRepository {
	return &NatsParticipantRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Participant](kvStore, "participant"),
	}
}

// Create stores a new participant.
func (r *NatsParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	return r.Put(ctx, ParticipantKey(participant.MeetingUID, participant.UID), participant)
}

// Get retrieves a participant within a meeting.
func (r *NatsParticipantRepository) Get(ctx context.Context, meetingUID, participantUID string) (*models.Participant, error) {
	return r.NatsBaseRepository.Get(ctx, ParticipantKey(meetingUID, participantUID))
}

// GetWithRevision retrieves a participant and its KV revision.
func (r *NatsParticipantRepository) GetWithRevision(ctx context.Context, meetingUID, participantUID string) (*models.Participant, uint64, error) {
	return r.NatsBaseRepository.GetWithRevision(ctx, ParticipantKey(meetingUID, participantUID))
}

// Update updates a participant with optimistic concurrency control.
func (r *NatsParticipantRepository) Update(ctx context.Context, participant *models.Participant, revision uint64) error {
	return r.NatsBaseRepository.Update(ctx, ParticipantKey(participant.MeetingUID, participant.UID), participant, revision)
}

// ListByMeeting returns a meeting's participants. Inactive participants are
// soft deleted and only included when includeInactive is set.
func (r *NatsParticipantRepository) ListByMeeting(ctx context.Context, meetingUID string, includeInactive bool) ([]*models.Participant, error) {
	participants, err := r.ListEntities(ctx, meetingUID+"/")
	if err != nil {
		return nil, err
	}

	if includeInactive {
		return participants, nil
	}

	active := make([]*models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}
