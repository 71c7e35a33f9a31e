// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
	"github.com/guitarbeat/stack-master-tool/pkg/concurrent"
	"golang.org/x/sync/singleflight"
)

const (
	// meetingCodeAlphabet is the character set meeting codes are drawn from.
	meetingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// meetingCodeLength is the fixed length of a meeting code.
	meetingCodeLength = 6
	// meetingCodeAttempts bounds collision retries during code generation.
	meetingCodeAttempts = 5
)

var _ domain.MeetingService = (*CentralizedService)(nil)

// CentralizedService implements the meeting service contract on top of NATS
// KV storage and NATS subject messaging.
type CentralizedService struct {
	meetingRepository     domain.MeetingRepository
	participantRepository domain.ParticipantRepository
	queueRepository       domain.QueueRepository
	messageBuilder        domain.MessageBuilder
	subscriber            domain.MessageSubscriber
	pool                  *concurrent.WorkerPool
	config                ServiceConfig

	// refetchGroup dedupes state re-fetches across concurrent event handlers:
	// a burst of events for the same meeting produces one storage read per
	// facet, scoped to this service instance.
	refetchGroup singleflight.Group
}

// NewCentralizedService creates a centralized adapter.
func NewCentralizedService(
	meetingRepository domain.MeetingRepository,
	participantRepository domain.ParticipantRepository,
	queueRepository domain.QueueRepository,
	messageBuilder domain.MessageBuilder,
	subscriber domain.MessageSubscriber,
	config ServiceConfig,
) *CentralizedService {
	return &CentralizedService{
		meetingRepository:     meetingRepository,
		participantRepository: participantRepository,
		queueRepository:       queueRepository,
		messageBuilder:        messageBuilder,
		subscriber:            subscriber,
		pool:                  concurrent.NewWorkerPool(10),
		config:                config,
	}
}

// ServiceReady checks if the service dependencies are wired.
func (s *CentralizedService) ServiceReady() bool {
	return s.meetingRepository != nil &&
		s.participantRepository != nil &&
		s.queueRepository != nil &&
		s.messageBuilder != nil
}

// Close tears down the adapter. The underlying NATS connection is owned by
// the caller, so there is nothing to release here.
func (s *CentralizedService) Close() error {
	return nil
}

// generateMeetingCode draws random codes until one is unused, giving up after
// a bounded number of collisions.
func (s *CentralizedService) generateMeetingCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < meetingCodeAttempts; attempt++ {
		code, err := randomMeetingCode()
		if err != nil {
			return "", domain.NewInternalError("failed to generate meeting code", err)
		}

		exists, err := s.meetingRepository.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}

		slog.DebugContext(ctx, "meeting code collision, retrying",
			"code", code, "attempt", attempt+1)
	}

	return "", domain.NewConflictError("exhausted meeting code generation attempts")
}

func randomMeetingCode() (string, error) {
	var b strings.Builder
	b.Grow(meetingCodeLength)
	max := big.NewInt(int64(len(meetingCodeAlphabet)))
	for i := 0; i < meetingCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(meetingCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// CreateMeeting creates a meeting with a fresh unique code and an empty queue
// document, and returns the stored meeting.
func (s *CentralizedService) CreateMeeting(ctx context.Context, title, facilitatorName, facilitatorUID string) (*models.Meeting, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("meeting service is not ready")
	}

	title = strings.TrimSpace(title)
	facilitatorName = strings.TrimSpace(facilitatorName)
	if err := validateStruct("invalid meeting", createMeetingInput{
		Title:           title,
		FacilitatorName: facilitatorName,
	}); err != nil {
		return nil, err
	}

	code, err := s.generateMeetingCode(ctx)
	if err != nil {
		return nil, err
	}

	meeting := &models.Meeting{
		UID:             uuid.New().String(),
		Code:            code,
		Title:           title,
		FacilitatorName: facilitatorName,
		FacilitatorUID:  facilitatorUID,
		CreatedAt:       time.Now().UTC(),
		IsActive:        true,
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_uid", meeting.UID))

	if err := s.meetingRepository.Create(ctx, meeting); err != nil {
		return nil, err
	}

	// Seed the queue document so later mutations can all run through
	// revision-checked updates.
	if err := s.queueRepository.Put(ctx, meeting.UID, []*models.QueueItem{}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "created meeting", "code", meeting.Code, "title", meeting.Title)
	return meeting, nil
}

// GetMeeting looks a meeting up by code and returns it with its roster and
// live queue. Codes match case-insensitively.
func (s *CentralizedService) GetMeeting(ctx context.Context, code string) (*models.MeetingState, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("meeting service is not ready")
	}

	meeting, err := s.meetingRepository.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}

	participants, err := s.participantRepository.ListByMeeting(ctx, meeting.UID, false)
	if err != nil {
		return nil, err
	}

	queueItems, err := s.queueRepository.Get(ctx, meeting.UID)
	if err != nil {
		return nil, err
	}

	return &models.MeetingState{
		Meeting:      meeting,
		Participants: participants,
		Queue:        queueItems,
	}, nil
}

// ListMeetings returns all stored meetings.
func (s *CentralizedService) ListMeetings(ctx context.Context) ([]*models.Meeting, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("meeting service is not ready")
	}
	return s.meetingRepository.ListAll(ctx)
}

// UpdateMeetingTitle renames a meeting and broadcasts the change.
func (s *CentralizedService) UpdateMeetingTitle(ctx context.Context, meetingUID, title string) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	title = strings.TrimSpace(title)
	if err := validateStruct("invalid meeting title", meetingTitleInput{Title: title}); err != nil {
		return err
	}

	meeting, revision, err := s.meetingRepository.GetWithRevision(ctx, meetingUID)
	if err != nil {
		return err
	}
	if !meeting.IsActive {
		return domain.NewValidationError("meeting has ended")
	}

	meeting.Title = title
	if err := s.meetingRepository.Update(ctx, meeting, revision); err != nil {
		return err
	}

	s.publish(ctx, func() error {
		return s.messageBuilder.SendTitleUpdated(ctx, meetingUID, title)
	})
	return nil
}

// EndMeeting deactivates a meeting and purges its queue document. The meeting
// record and participants stay readable for history.
func (s *CentralizedService) EndMeeting(ctx context.Context, meetingUID string) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("meeting service is not ready")
	}

	meeting, revision, err := s.meetingRepository.GetWithRevision(ctx, meetingUID)
	if err != nil {
		return err
	}
	if !meeting.IsActive {
		return nil
	}

	meeting.IsActive = false
	if err := s.meetingRepository.Update(ctx, meeting, revision); err != nil {
		return err
	}

	if err := s.queueRepository.Purge(ctx, meetingUID); err != nil {
		slog.WarnContext(ctx, "failed to purge queue for ended meeting",
			logging.ErrKey, err, "meeting_uid", meetingUID)
	}

	s.publish(ctx, func() error {
		return s.messageBuilder.SendQueueUpdated(ctx, meetingUID, []*models.QueueItem{})
	})

	slog.InfoContext(ctx, "ended meeting", "meeting_uid", meetingUID)
	return nil
}

// CanRejoinAsFacilitator reports whether the given name may claim the
// facilitator role for the meeting. Names match case-insensitively.
func (s *CentralizedService) CanRejoinAsFacilitator(ctx context.Context, code, name string) (bool, error) {
	if !s.ServiceReady() {
		return false, domain.NewUnavailableError("meeting service is not ready")
	}

	meeting, err := s.meetingRepository.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return false, err
	}

	return strings.EqualFold(strings.TrimSpace(name), meeting.FacilitatorName), nil
}

// requireActiveMeeting loads a meeting and rejects mutations once it ended.
func (s *CentralizedService) requireActiveMeeting(ctx context.Context, meetingUID string) (*models.Meeting, error) {
	meeting, err := s.meetingRepository.Get(ctx, meetingUID)
	if err != nil {
		return nil, err
	}
	if !meeting.IsActive {
		return nil, domain.NewValidationError("meeting has ended")
	}
	return meeting, nil
}

// publish fans broadcast sends out through the worker pool. Broadcast
// failures are logged, never returned: the mutation already committed.
func (s *CentralizedService) publish(ctx context.Context, functions ...func() error) {
	for _, err := range s.pool.RunAll(ctx, functions...) {
		slog.ErrorContext(ctx, "failed to publish meeting event",
			logging.ErrKey, err, logging.PriorityCritical())
	}
}
