// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package models

// NATS request subjects handled by the legacy message channel. These carry the
// client-to-server event names the legacy transport established, so existing
// clients stay wire-compatible.
const (
	// JoinMeetingSubject is the subject for joining a meeting by code.
	JoinMeetingSubject = "stackmaster.join-meeting"

	// JoinQueueSubject is the subject for a participant entering the queue.
	JoinQueueSubject = "stackmaster.join-queue"

	// LeaveQueueSubject is the subject for a participant leaving the queue.
	LeaveQueueSubject = "stackmaster.leave-queue"

	// NextSpeakerSubject is the subject for advancing to the next speaker.
	NextSpeakerSubject = "stackmaster.next-speaker"
)

// QueueServiceQueue is the NATS queue group for the legacy channel handlers.
const QueueServiceQueue = "stackmaster-queue-service"

// Per-meeting broadcast event names, the server-to-client half of the legacy
// contract. They are appended to the meeting's event subject prefix.
const (
	EventMeetingJoined       = "meeting-joined"
	EventParticipantsUpdated = "participants-updated"
	EventQueueUpdated        = "queue-updated"
	EventParticipantJoined   = "participant-joined"
	EventParticipantLeft     = "participant-left"
	EventNextSpeaker         = "next-speaker"
	EventTitleUpdated        = "title-updated"
	EventError               = "error"
)

// MeetingEventSubject builds the broadcast subject for one meeting event,
// e.g. "stackmaster.meetings.<uid>.queue-updated".
func MeetingEventSubject(meetingUID, event string) string {
	return "stackmaster.meetings." + meetingUID + "." + event
}

// MeetingEventWildcard is the subscription pattern covering every broadcast
// event of one meeting.
func MeetingEventWildcard(meetingUID string) string {
	return "stackmaster.meetings." + meetingUID + ".>"
}

// JoinMeetingMessage is the payload of a join-meeting request.
type JoinMeetingMessage struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	IsFacilitator bool   `json:"is_facilitator,omitempty"`
}

// JoinQueueMessage is the payload of a join-queue request.
type JoinQueueMessage struct {
	MeetingUID     string    `json:"meeting_uid"`
	ParticipantUID string    `json:"participant_uid"`
	Type           QueueType `json:"type,omitempty"`
}

// LeaveQueueMessage is the payload of a leave-queue request.
type LeaveQueueMessage struct {
	MeetingUID     string `json:"meeting_uid"`
	ParticipantUID string `json:"participant_uid"`
}

// NextSpeakerMessage is the payload of a next-speaker request.
type NextSpeakerMessage struct {
	MeetingUID string `json:"meeting_uid"`
}

// MeetingJoinedMessage is the reply to a successful join-meeting request.
type MeetingJoinedMessage struct {
	Meeting      *Meeting       `json:"meeting"`
	Participant  *Participant   `json:"participant"`
	Participants []*Participant `json:"participants"`
	Queue        []*QueueItem   `json:"queue"`
}

// ParticipantEventMessage is the payload of participant-joined and
// participant-left broadcasts.
type ParticipantEventMessage struct {
	MeetingUID  string       `json:"meeting_uid"`
	Participant *Participant `json:"participant"`
}

// QueueUpdatedMessage is the payload of queue-updated broadcasts and carries
// the full reconciled queue snapshot.
type QueueUpdatedMessage struct {
	MeetingUID string       `json:"meeting_uid"`
	Queue      []*QueueItem `json:"queue"`
}

// ParticipantsUpdatedMessage carries the full reconciled participant list.
type ParticipantsUpdatedMessage struct {
	MeetingUID   string         `json:"meeting_uid"`
	Participants []*Participant `json:"participants"`
}

// NextSpeakerEventMessage is the payload of next-speaker broadcasts.
type NextSpeakerEventMessage struct {
	MeetingUID string     `json:"meeting_uid"`
	Item       *QueueItem `json:"item,omitempty"`
}

// TitleUpdatedMessage is the payload of title-updated broadcasts.
type TitleUpdatedMessage struct {
	MeetingUID string `json:"meeting_uid"`
	Title      string `json:"title"`
}

// ErrorMessage is the payload of error broadcasts and error replies.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
