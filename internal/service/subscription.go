// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
)

// SubscribeToMeeting attaches callbacks to a meeting's event stream. Events
// carrying full state are delivered directly; events that only signal a
// change trigger a deduped re-fetch from storage. The returned function is
// safe to call more than once.
func (s *CentralizedService) SubscribeToMeeting(ctx context.Context, meetingUID string, callbacks domain.MeetingCallbacks) (domain.UnsubscribeFunc, error) {
	if s.subscriber == nil {
		return nil, domain.NewUnavailableError("meeting service is not ready")
	}

	sub, err := s.subscriber.Subscribe(models.MeetingEventWildcard(meetingUID), func(subject string, data []byte) {
		s.dispatchEvent(ctx, meetingUID, subject, data, callbacks)
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				slog.WarnContext(ctx, "failed to unsubscribe from meeting events",
					logging.ErrKey, err, "meeting_uid", meetingUID)
			}
		})
	}

	slog.DebugContext(ctx, "subscribed to meeting events", "meeting_uid", meetingUID)
	return unsubscribe, nil
}

func (s *CentralizedService) dispatchEvent(ctx context.Context, meetingUID, subject string, data []byte, callbacks domain.MeetingCallbacks) {
	event := subject[strings.LastIndex(subject, ".")+1:]

	switch event {
	case models.EventQueueUpdated:
		if callbacks.OnQueueChanged == nil {
			return
		}
		var msg models.QueueUpdatedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reportCallbackError(ctx, callbacks,
				domain.NewInternalError("failed to decode queue update", err))
			return
		}
		callbacks.OnQueueChanged(msg.Queue)

	case models.EventParticipantsUpdated:
		if callbacks.OnParticipantsChanged == nil {
			return
		}
		var msg models.ParticipantsUpdatedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reportCallbackError(ctx, callbacks,
				domain.NewInternalError("failed to decode participants update", err))
			return
		}
		callbacks.OnParticipantsChanged(msg.Participants)

	case models.EventParticipantJoined, models.EventParticipantLeft:
		// Membership deltas only signal a change; re-fetch the roster so
		// concurrent deltas collapse into one read.
		if callbacks.OnParticipantsChanged == nil {
			return
		}
		participants, err := s.refetchParticipants(ctx, meetingUID)
		if err != nil {
			s.reportCallbackError(ctx, callbacks, err)
			return
		}
		callbacks.OnParticipantsChanged(participants)

	case models.EventNextSpeaker:
		if callbacks.OnQueueChanged == nil {
			return
		}
		items, err := s.refetchQueue(ctx, meetingUID)
		if err != nil {
			s.reportCallbackError(ctx, callbacks, err)
			return
		}
		callbacks.OnQueueChanged(items)

	case models.EventTitleUpdated:
		if callbacks.OnTitleChanged == nil {
			return
		}
		var msg models.TitleUpdatedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reportCallbackError(ctx, callbacks,
				domain.NewInternalError("failed to decode title update", err))
			return
		}
		callbacks.OnTitleChanged(msg.Title)

	case models.EventError:
		var msg models.ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		s.reportCallbackError(ctx, callbacks, domain.NewInternalError(msg.Message))
	}
}

func (s *CentralizedService) refetchParticipants(ctx context.Context, meetingUID string) ([]*models.Participant, error) {
	result, err, _ := s.refetchGroup.Do(meetingUID+":participants", func() (any, error) {
		return s.participantRepository.ListByMeeting(ctx, meetingUID, false)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.Participant), nil
}

func (s *CentralizedService) refetchQueue(ctx context.Context, meetingUID string) ([]*models.QueueItem, error) {
	result, err, _ := s.refetchGroup.Do(meetingUID+":queue", func() (any, error) {
		return s.queueRepository.Get(ctx, meetingUID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.QueueItem), nil
}

func (s *CentralizedService) reportCallbackError(ctx context.Context, callbacks domain.MeetingCallbacks, err error) {
	slog.WarnContext(ctx, "meeting subscription error", logging.ErrKey, err)
	if callbacks.OnError != nil {
		callbacks.OnError(err)
	}
}
