// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// Meeting is the key-value store representation of a meeting.
type Meeting struct {
	UID             string    `json:"uid"`
	Code            string    `json:"code"`
	Title           string    `json:"title"`
	FacilitatorName string    `json:"facilitator_name"`
	FacilitatorUID  string    `json:"facilitator_uid,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	IsActive        bool      `json:"is_active"`
}

// MeetingState is a meeting together with its participants and live queue,
// the shape returned by lookups and pushed to realtime subscribers.
type MeetingState struct {
	Meeting      *Meeting       `json:"meeting"`
	Participants []*Participant `json:"participants"`
	Queue        []*QueueItem   `json:"queue"`
}

// Tags generates a list of field tags for the meeting, used for log context.
func (m *Meeting) Tags() []string {
	tags := []string{}

	if m == nil {
		return nil
	}

	if m.UID != "" {
		tags = append(tags, m.UID)
	}
	if m.Code != "" {
		tags = append(tags, m.Code)
	}
	if m.Title != "" {
		tags = append(tags, m.Title)
	}

	return tags
}
