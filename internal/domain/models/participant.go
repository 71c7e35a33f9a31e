// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// Participant is the key-value store representation of a meeting participant.
// A participant belongs to exactly one meeting for its lifetime. Removal is a
// soft delete: IsActive flips to false so the record can be restored by undo.
type Participant struct {
	UID           string    `json:"uid"`
	MeetingUID    string    `json:"meeting_uid"`
	Name          string    `json:"name"`
	IsFacilitator bool      `json:"is_facilitator"`
	JoinedAt      time.Time `json:"joined_at"`
	IsActive      bool      `json:"is_active"`
}

// ParticipantSnapshot is an immutable capture of a participant at the moment
// of removal, carrying enough state to reverse the removal exactly once. It is
// never mutated after creation.
type ParticipantSnapshot struct {
	Participant   Participant `json:"participant"`
	QueueItem     *QueueItem  `json:"queue_item,omitempty"`
	QueuePosition int         `json:"queue_position,omitempty"`
	RemovedAt     time.Time   `json:"removed_at"`
}
