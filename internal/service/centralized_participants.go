// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
	"github.com/guitarbeat/stack-master-tool/internal/queue"
)

// JoinMeeting adds a participant to the meeting identified by code. Joining
// as facilitator requires the name to match the facilitator on record.
func (s *CentralizedService) JoinMeeting(ctx context.Context, code, name string, isFacilitator bool) (*models.Participant, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("meeting service is not ready")
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if err := validateStruct("invalid join request", joinMeetingInput{Code: code, Name: name}); err != nil {
		return nil, err
	}

	meeting, err := s.meetingRepository.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !meeting.IsActive {
		return nil, domain.NewValidationError("meeting has ended")
	}

	if isFacilitator && !strings.EqualFold(name, meeting.FacilitatorName) {
		return nil, domain.NewUnauthorizedError("name does not match the meeting facilitator")
	}

	participant := &models.Participant{
		UID:           uuid.New().String(),
		MeetingUID:    meeting.UID,
		Name:          name,
		IsFacilitator: isFacilitator,
		JoinedAt:      time.Now().UTC(),
		IsActive:      true,
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_uid", meeting.UID))

	if err := s.participantRepository.Create(ctx, participant); err != nil {
		return nil, err
	}

	s.broadcastParticipants(ctx, meeting.UID, func(participants []*models.Participant) []func() error {
		return []func() error{
			func() error {
				return s.messageBuilder.SendParticipantJoined(ctx, meeting.UID, participant)
			},
			func() error {
				return s.messageBuilder.SendParticipantsUpdated(ctx, meeting.UID, participants)
			},
		}
	})

	slog.InfoContext(ctx, "participant joined meeting",
		"participant_uid", participant.UID, "is_facilitator", isFacilitator)
	return participant, nil
}

// UpdateParticipantName renames a participant. A live queue entry carries the
// participant's display name, so the queue document is updated alongside.
func (s *CentralizedService) UpdateParticipantName(ctx context.Context, meetingUID, participantUID, name string) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	name = strings.TrimSpace(name)
	if err := validateStruct("invalid participant name", participantNameInput{Name: name}); err != nil {
		return err
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return err
	}

	participant, revision, err := s.participantRepository.GetWithRevision(ctx, meetingUID, participantUID)
	if err != nil {
		return err
	}

	participant.Name = name
	if err := s.participantRepository.Update(ctx, participant, revision); err != nil {
		return err
	}

	items, err := s.mutateQueue(ctx, meetingUID, func(items []*models.QueueItem) ([]*models.QueueItem, error) {
		entry := queue.Find(items, participantUID)
		if entry == nil {
			return items, nil
		}
		next := queue.Clone(items)
		queue.Find(next, participantUID).ParticipantName = name
		return next, nil
	})
	if err != nil {
		return err
	}

	s.broadcastParticipants(ctx, meetingUID, func(participants []*models.Participant) []func() error {
		return []func() error{
			func() error {
				return s.messageBuilder.SendParticipantsUpdated(ctx, meetingUID, participants)
			},
			func() error {
				return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, items)
			},
		}
	})
	return nil
}

// RemoveParticipant soft deletes a participant and drops their queue entry.
// The returned snapshot carries enough state to undo the removal.
func (s *CentralizedService) RemoveParticipant(ctx context.Context, meetingUID, participantUID string) (*models.ParticipantSnapshot, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("meeting service is not ready")
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return nil, err
	}

	participant, revision, err := s.participantRepository.GetWithRevision(ctx, meetingUID, participantUID)
	if err != nil {
		return nil, err
	}
	if !participant.IsActive {
		return nil, domain.NewNotFoundError("participant already removed")
	}

	snapshot := &models.ParticipantSnapshot{
		Participant: *participant,
		RemovedAt:   time.Now().UTC(),
	}

	items, err := s.mutateQueue(ctx, meetingUID, func(items []*models.QueueItem) ([]*models.QueueItem, error) {
		next, removed, err := queue.Remove(items, participantUID)
		if err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
				return items, nil
			}
			return nil, err
		}
		snapshot.QueueItem = removed
		snapshot.QueuePosition = removed.Position
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	participant.IsActive = false
	if err := s.participantRepository.Update(ctx, participant, revision); err != nil {
		return nil, err
	}

	s.broadcastParticipants(ctx, meetingUID, func(participants []*models.Participant) []func() error {
		return []func() error{
			func() error {
				return s.messageBuilder.SendParticipantLeft(ctx, meetingUID, participant)
			},
			func() error {
				return s.messageBuilder.SendParticipantsUpdated(ctx, meetingUID, participants)
			},
			func() error {
				return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, items)
			},
		}
	})

	slog.InfoContext(ctx, "removed participant",
		"meeting_uid", meetingUID, "participant_uid", participantUID)
	return snapshot, nil
}

// RestoreParticipant reverses a soft delete.
func (s *CentralizedService) RestoreParticipant(ctx context.Context, meetingUID, participantUID string) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	if _, err := s.requireActiveMeeting(ctx, meetingUID); err != nil {
		return err
	}

	participant, revision, err := s.participantRepository.GetWithRevision(ctx, meetingUID, participantUID)
	if err != nil {
		return err
	}
	if participant.IsActive {
		return nil
	}

	participant.IsActive = true
	if err := s.participantRepository.Update(ctx, participant, revision); err != nil {
		return err
	}

	s.broadcastParticipants(ctx, meetingUID, func(participants []*models.Participant) []func() error {
		return []func() error{
			func() error {
				return s.messageBuilder.SendParticipantJoined(ctx, meetingUID, participant)
			},
			func() error {
				return s.messageBuilder.SendParticipantsUpdated(ctx, meetingUID, participants)
			},
		}
	})
	return nil
}

// LeaveMeeting is a participant-initiated removal. The participant is soft
// deleted and their queue entry dropped, but no undo snapshot is taken.
func (s *CentralizedService) LeaveMeeting(ctx context.Context, meetingUID, participantUID string) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	_, err := s.RemoveParticipant(ctx, meetingUID, participantUID)
	return err
}

// broadcastParticipants lists the active roster and fans out the sends the
// caller builds from it.
func (s *CentralizedService) broadcastParticipants(ctx context.Context, meetingUID string, build func(participants []*models.Participant) []func() error) {
	participants, err := s.participantRepository.ListByMeeting(ctx, meetingUID, false)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list participants for broadcast",
			logging.ErrKey, err, "meeting_uid", meetingUID)
		return
	}
	s.publish(ctx, build(participants)...)
}
