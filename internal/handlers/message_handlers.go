// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package handlers dispatches inbound NATS request messages to the meeting
// service.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
)

// MeetingHandler routes request subjects to service operations and writes
// JSON replies. Failures reply with an error payload instead of staying
// silent, so requesters always hear back.
type MeetingHandler struct {
	service domain.MeetingService
}

// NewMeetingHandler creates the handler for the meeting request subjects.
func NewMeetingHandler(service domain.MeetingService) *MeetingHandler {
	return &MeetingHandler{service: service}
}

// HandlerReady checks if the handler is ready to process messages.
func (h *MeetingHandler) HandlerReady() bool {
	return h.service != nil
}

// HandleMessage dispatches an incoming message by subject.
func (h *MeetingHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))

	if !h.HandlerReady() {
		slog.ErrorContext(ctx, "handler dependencies are not ready", logging.PriorityCritical())
		h.respondError(ctx, msg, domain.NewUnavailableError("service is not ready"))
		return
	}

	handlers := map[string]func(ctx context.Context, msg domain.Message){
		models.JoinMeetingSubject: h.handleJoinMeeting,
		models.JoinQueueSubject:   h.handleJoinQueue,
		models.LeaveQueueSubject:  h.handleLeaveQueue,
		models.NextSpeakerSubject: h.handleNextSpeaker,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		return
	}

	handler(ctx, msg)
}

func (h *MeetingHandler) handleJoinMeeting(ctx context.Context, msg domain.Message) {
	var req models.JoinMeetingMessage
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		h.respondError(ctx, msg, domain.NewValidationError("invalid join-meeting payload", err))
		return
	}

	participant, err := h.service.JoinMeeting(ctx, req.Code, req.Name, req.IsFacilitator)
	if err != nil {
		h.respondError(ctx, msg, err)
		return
	}

	state, err := h.service.GetMeeting(ctx, req.Code)
	if err != nil {
		h.respondError(ctx, msg, err)
		return
	}

	h.respond(ctx, msg, models.MeetingJoinedMessage{
		Meeting:      state.Meeting,
		Participant:  participant,
		Participants: state.Participants,
		Queue:        state.Queue,
	})
}

func (h *MeetingHandler) handleJoinQueue(ctx context.Context, msg domain.Message) {
	var req models.JoinQueueMessage
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		h.respondError(ctx, msg, domain.NewValidationError("invalid join-queue payload", err))
		return
	}

	item, err := h.service.JoinQueue(ctx, req.MeetingUID, req.ParticipantUID, req.Type)
	if err != nil {
		h.respondError(ctx, msg, err)
		return
	}

	h.respond(ctx, msg, item)
}

func (h *MeetingHandler) handleLeaveQueue(ctx context.Context, msg domain.Message) {
	var req models.LeaveQueueMessage
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		h.respondError(ctx, msg, domain.NewValidationError("invalid leave-queue payload", err))
		return
	}

	if err := h.service.LeaveQueue(ctx, req.MeetingUID, req.ParticipantUID); err != nil {
		h.respondError(ctx, msg, err)
		return
	}

	h.respond(ctx, msg, models.QueueUpdatedMessage{MeetingUID: req.MeetingUID})
}

func (h *MeetingHandler) handleNextSpeaker(ctx context.Context, msg domain.Message) {
	var req models.NextSpeakerMessage
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		h.respondError(ctx, msg, domain.NewValidationError("invalid next-speaker payload", err))
		return
	}

	item, err := h.service.NextSpeaker(ctx, req.MeetingUID)
	if err != nil {
		h.respondError(ctx, msg, err)
		return
	}

	h.respond(ctx, msg, models.NextSpeakerEventMessage{MeetingUID: req.MeetingUID, Item: item})
}

func (h *MeetingHandler) respond(ctx context.Context, msg domain.Message, payload any) {
	if !msg.HasReply() {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "error marshaling response", logging.ErrKey, err)
		return
	}

	if err := msg.Respond(data); err != nil {
		slog.ErrorContext(ctx, "error responding to message", logging.ErrKey, err)
	}
}

func (h *MeetingHandler) respondError(ctx context.Context, msg domain.Message, cause error) {
	slog.WarnContext(ctx, "request failed", logging.ErrKey, cause)

	h.respond(ctx, msg, models.ErrorMessage{
		Code:    domain.GetErrorType(cause).String(),
		Message: cause.Error(),
	})
}
