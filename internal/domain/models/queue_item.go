// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// QueueType is the closed set of intervention types a queue entry can carry.
type QueueType string

const (
	QueueTypeSpeak          QueueType = "speak"
	QueueTypeDirectResponse QueueType = "direct-response"
	QueueTypePointOfInfo    QueueType = "point-of-info"
	QueueTypeClarification  QueueType = "clarification"
)

// IsValid reports whether the queue type is one of the closed enum values.
func (t QueueType) IsValid() bool {
	switch t {
	case QueueTypeSpeak, QueueTypeDirectResponse, QueueTypePointOfInfo, QueueTypeClarification:
		return true
	}
	return false
}

// QueueItem is one entry in a meeting's speaking queue. Positions across a
// meeting's live queue are a dense 1-based sequence; position 1 is the current
// speaker.
type QueueItem struct {
	UID             string    `json:"uid"`
	ParticipantUID  string    `json:"participant_uid"`
	ParticipantName string    `json:"participant_name"`
	Type            QueueType `json:"type"`
	Position        int       `json:"position"`
	Timestamp       time.Time `json:"timestamp"`
	IsSpeaking      bool      `json:"is_speaking"`
}

// Queue is the key-value store representation of a meeting's entire live
// queue. Storing the whole ordered sequence as one document lets every
// renumbering mutation be a single revision-checked update.
type Queue struct {
	MeetingUID string       `json:"meeting_uid"`
	Items      []*QueueItem `json:"items"`
}
