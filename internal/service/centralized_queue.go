// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/queue"
)

// queueUpdateRetries bounds how often a queue mutation is replayed after a
// revision conflict before the conflict is surfaced to the caller.
const queueUpdateRetries = 3

// mutateQueue reads the queue document, applies fn to it, and writes the
// result back with a revision check. On a conflict the read-apply-write cycle
// is replayed against the fresh document.
func (s *CentralizedService) mutateQueue(ctx context.Context, meetingUID string, fn func(items []*models.QueueItem) ([]*models.QueueItem, error)) ([]*models.QueueItem, error) {
	var lastErr error
	for attempt := 0; attempt < queueUpdateRetries; attempt++ {
		items, revision, err := s.queueRepository.GetWithRevision(ctx, meetingUID)
		if err != nil {
			return nil, err
		}

		next, err := fn(items)
		if err != nil {
			return nil, err
		}

		if err := s.queueRepository.Update(ctx, meetingUID, next, revision); err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeConflict {
				lastErr = err
				slog.DebugContext(ctx, "queue revision conflict, retrying",
					"meeting_uid", meetingUID, "attempt", attempt+1)
				continue
			}
			return nil, err
		}

		return next, nil
	}
	return nil, lastErr
}

// JoinQueue appends a participant to the end of the speaking queue. A
// participant holds at most one live entry at a time.
func (s *CentralizedService) JoinQueue(ctx context.Context, meetingUID, participantUID string, queueType models.QueueType) (*models.QueueItem, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("meeting service is not ready")
	}

	if queueType == "" {
		queueType = models.QueueTypeSpeak
	}
	if !queueType.IsValid() {
		return nil, domain.NewValidationError("unknown queue type")
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return nil, err
	}

	participant, err := s.participantRepository.Get(ctx, meetingUID, participantUID)
	if err != nil {
		return nil, err
	}
	if !participant.IsActive {
		return nil, domain.NewNotFoundError("participant is not in the meeting")
	}

	item := &models.QueueItem{
		UID:             uuid.New().String(),
		ParticipantUID:  participantUID,
		ParticipantName: participant.Name,
		Type:            queueType,
		Timestamp:       time.Now().UTC(),
	}

	items, err := s.mutateQueue(ctx, meetingUID, func(items []*models.QueueItem) ([]*models.QueueItem, error) {
		return queue.Append(items, item)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, func() error {
		return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, items)
	})

	slog.InfoContext(ctx, "participant joined queue",
		"meeting_uid", meetingUID, "participant_uid", participantUID,
		"queue_type", string(queueType), "position", item.Position)
	return item, nil
}

// LeaveQueue removes a participant's entry and closes the gap.
func (s *CentralizedService) LeaveQueue(ctx context.Context, meetingUID, participantUID string) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return err
	}

	items, err := s.mutateQueue(ctx, meetingUID, func(items []*models.QueueItem) ([]*models.QueueItem, error) {
		next, _, err := queue.Remove(items, participantUID)
		return next, err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, func() error {
		return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, items)
	})
	return nil
}

// NextSpeaker pops the entry at position 1 and promotes the rest of the
// queue. An empty queue is a not-found error.
func (s *CentralizedService) NextSpeaker(ctx context.Context, meetingUID string) (*models.QueueItem, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("meeting service is not ready")
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return nil, err
	}

	var popped *models.QueueItem
	items, err := s.mutateQueue(ctx, meetingUID, func(items []*models.QueueItem) ([]*models.QueueItem, error) {
		first, rest, err := queue.PopFirst(items)
		if err != nil {
			return nil, err
		}
		popped = first
		return rest, nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx,
		func() error {
			return s.messageBuilder.SendNextSpeaker(ctx, meetingUID, popped)
		},
		func() error {
			return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, items)
		},
	)

	slog.InfoContext(ctx, "advanced to next speaker",
		"meeting_uid", meetingUID, "participant_uid", popped.ParticipantUID)
	return popped, nil
}

// ReorderQueueItem moves a participant's entry to newPosition, shifting the
// entries in between by one. Moving to the current position succeeds without
// a write.
func (s *CentralizedService) ReorderQueueItem(ctx context.Context, meetingUID, participantUID string, newPosition int) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return err
	}

	items, err := s.mutateQueue(ctx, meetingUID, func(items []*models.QueueItem) ([]*models.QueueItem, error) {
		return queue.Reorder(items, participantUID, newPosition)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, func() error {
		return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, items)
	})
	return nil
}

// ClearQueue empties the speaking queue in one write.
func (s *CentralizedService) ClearQueue(ctx context.Context, meetingUID string) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return err
	}

	_, err := s.mutateQueue(ctx, meetingUID, func(items []*models.QueueItem) ([]*models.QueueItem, error) {
		return []*models.QueueItem{}, nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, func() error {
		return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, []*models.QueueItem{})
	})
	return nil
}

// RestoreQueue replaces the queue with a previously captured sequence,
// renumbered to keep positions dense.
func (s *CentralizedService) RestoreQueue(ctx context.Context, meetingUID string, restore []*models.QueueItem) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return err
	}

	items, err := s.mutateQueue(ctx, meetingUID, func(items []*models.QueueItem) ([]*models.QueueItem, error) {
		next := queue.Renumber(queue.Clone(restore))
		if err := queue.Validate(next); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, func() error {
		return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, items)
	})
	return nil
}
