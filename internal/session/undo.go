// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package session holds facilitator-side session state that never leaves the
// local process, most notably the bounded undo history for destructive queue
// actions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/queue"
)

// undoHistoryLimit bounds the undo stack; the oldest action falls off when a
// sixth is recorded.
const undoHistoryLimit = 5

// FacilitatorSession wraps the meeting service with a local undo history.
// Destructive actions capture their pre-mutation state before running; Undo
// replays the inverse of the most recent one. The history is session-local:
// it is never replicated and dies with the session.
type FacilitatorSession struct {
	service    domain.MeetingService
	meetingUID string

	mu      sync.Mutex
	history []*models.UndoAction
}

// NewFacilitatorSession creates an undo-capable wrapper for one meeting.
func NewFacilitatorSession(service domain.MeetingService, meetingUID string) *FacilitatorSession {
	return &FacilitatorSession{service: service, meetingUID: meetingUID}
}

func (s *FacilitatorSession) record(action *models.UndoAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, action)
	if len(s.history) > undoHistoryLimit {
		s.history = s.history[len(s.history)-undoHistoryLimit:]
	}
}

// HistoryLen reports how many actions can currently be undone.
func (s *FacilitatorSession) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// RemoveParticipant removes a participant and records the snapshot needed to
// bring them back.
func (s *FacilitatorSession) RemoveParticipant(ctx context.Context, participantUID string) (*models.ParticipantSnapshot, error) {
	snapshot, err := s.service.RemoveParticipant(ctx, s.meetingUID, participantUID)
	if err != nil {
		return nil, err
	}

	s.record(&models.UndoAction{
		Kind:       models.UndoKindRemove,
		MeetingUID: s.meetingUID,
		Snapshot:   snapshot,
		RecordedAt: time.Now().UTC(),
	})
	return snapshot, nil
}

// NextSpeaker advances the queue and records the pre-pop queue.
func (s *FacilitatorSession) NextSpeaker(ctx context.Context) (*models.QueueItem, error) {
	state, err := s.currentQueue(ctx)
	if err != nil {
		return nil, err
	}

	item, err := s.service.NextSpeaker(ctx, s.meetingUID)
	if err != nil {
		return nil, err
	}

	s.record(&models.UndoAction{
		Kind:       models.UndoKindNext,
		MeetingUID: s.meetingUID,
		Queue:      state,
		RecordedAt: time.Now().UTC(),
	})
	return item, nil
}

// ClearQueue empties the queue and records it for restoration.
func (s *FacilitatorSession) ClearQueue(ctx context.Context) error {
	state, err := s.currentQueue(ctx)
	if err != nil {
		return err
	}

	if err := s.service.ClearQueue(ctx, s.meetingUID); err != nil {
		return err
	}

	s.record(&models.UndoAction{
		Kind:       models.UndoKindClear,
		MeetingUID: s.meetingUID,
		Queue:      state,
		RecordedAt: time.Now().UTC(),
	})
	return nil
}

// Undo reverses the most recent recorded action. An empty history is a
// not-found error.
func (s *FacilitatorSession) Undo(ctx context.Context) (*models.UndoAction, error) {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return nil, domain.NewNotFoundError("nothing to undo")
	}
	action := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.mu.Unlock()

	switch action.Kind {
	case models.UndoKindRemove:
		if err := s.service.RestoreParticipant(ctx, s.meetingUID, action.Snapshot.Participant.UID); err != nil {
			return nil, err
		}
		// Put the queue entry back where it was.
		if action.Snapshot.QueueItem != nil {
			item := action.Snapshot.QueueItem
			if _, err := s.service.JoinQueue(ctx, s.meetingUID, item.ParticipantUID, item.Type); err != nil {
				return nil, err
			}
			if err := s.service.ReorderQueueItem(ctx, s.meetingUID, item.ParticipantUID, action.Snapshot.QueuePosition); err != nil {
				// The queue may have shrunk since the snapshot; the restored
				// entry stays at the tail.
				if domain.GetErrorType(err) != domain.ErrorTypeValidation {
					return nil, err
				}
			}
		}

	case models.UndoKindNext, models.UndoKindClear:
		if err := s.service.RestoreQueue(ctx, s.meetingUID, action.Queue); err != nil {
			return nil, err
		}

	default:
		return nil, domain.NewInternalError("unknown undo action")
	}

	return action, nil
}

func (s *FacilitatorSession) currentQueue(ctx context.Context) ([]*models.QueueItem, error) {
	meeting, err := s.service.ListMeetings(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range meeting {
		if m.UID != s.meetingUID {
			continue
		}
		state, err := s.service.GetMeeting(ctx, m.Code)
		if err != nil {
			return nil, err
		}
		return queue.Clone(state.Queue), nil
	}

	return nil, domain.NewNotFoundError("meeting not found")
}
