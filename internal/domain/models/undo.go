// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// UndoKind tags the destructive facilitator actions that can be reversed.
type UndoKind string

const (
	UndoKindRemove UndoKind = "remove"
	UndoKindNext   UndoKind = "next"
	UndoKindClear  UndoKind = "clear"
)

// UndoAction records enough pre-mutation state to reverse exactly one prior
// mutation. Remove actions carry the participant snapshot; next and clear
// actions carry the queue as it stood before the mutation. Undo history is
// local to a facilitator session and never replicated.
type UndoAction struct {
	Kind       UndoKind             `json:"kind"`
	MeetingUID string               `json:"meeting_uid"`
	Snapshot   *ParticipantSnapshot `json:"snapshot,omitempty"`
	Queue      []*QueueItem         `json:"queue,omitempty"`
	RecordedAt time.Time            `json:"recorded_at"`
}
