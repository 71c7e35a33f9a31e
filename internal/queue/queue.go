// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package queue holds the backend-agnostic ordering rules for a meeting's
// speaking queue: positions form a dense 1-based sequence, each participant
// holds at most one live entry, and only the entry at position 1 is speaking.
// Both the centralized and the peer-to-peer adapters mutate through these
// functions so the invariants never depend on backend type.
package queue

import (
	"fmt"
	"sort"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
)

// Clone returns a deep copy of the queue so callers can mutate freely.
func Clone(items []*models.QueueItem) []*models.QueueItem {
	out := make([]*models.QueueItem, len(items))
	for i, item := range items {
		copied := *item
		out[i] = &copied
	}
	return out
}

// Renumber sorts the items by their current position and reassigns a dense
// 1..N sequence. The entry at position 1 is marked as speaking, all others
// are not. The input is mutated and returned.
func Renumber(items []*models.QueueItem) []*models.QueueItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return assignPositions(items)
}

// assignPositions reassigns a dense 1..N sequence in slice order. Callers
// that have already placed the slice in its intended order use this instead
// of Renumber, which would re-sort by the stale Position fields.
func assignPositions(items []*models.QueueItem) []*models.QueueItem {
	for i, item := range items {
		item.Position = i + 1
		item.IsSpeaking = i == 0
	}
	return items
}

// Find returns the live entry for a participant, or nil.
func Find(items []*models.QueueItem, participantUID string) *models.QueueItem {
	for _, item := range items {
		if item.ParticipantUID == participantUID {
			return item
		}
	}
	return nil
}

// Append adds a new entry at position max+1. It returns a conflict error if
// the participant already holds a live entry.
func Append(items []*models.QueueItem, item *models.QueueItem) ([]*models.QueueItem, error) {
	if Find(items, item.ParticipantUID) != nil {
		return nil, domain.NewConflictError("participant already in queue")
	}

	next := Clone(items)
	item.Position = len(next) + 1
	item.IsSpeaking = item.Position == 1
	next = append(next, item)
	return next, nil
}

// Remove deletes the participant's entry and decrements every succeeding
// position so the sequence stays dense. It returns the removed entry.
func Remove(items []*models.QueueItem, participantUID string) ([]*models.QueueItem, *models.QueueItem, error) {
	target := Find(items, participantUID)
	if target == nil {
		return nil, nil, domain.NewNotFoundError("participant not in queue")
	}

	removed := *target
	next := make([]*models.QueueItem, 0, len(items)-1)
	for _, item := range Clone(items) {
		if item.ParticipantUID == participantUID {
			continue
		}
		next = append(next, item)
	}
	return Renumber(next), &removed, nil
}

// PopFirst removes the entry at position 1 and promotes the rest. It returns
// a not-found error on an empty queue.
func PopFirst(items []*models.QueueItem) (*models.QueueItem, []*models.QueueItem, error) {
	if len(items) == 0 {
		return nil, nil, domain.NewNotFoundError("queue is empty")
	}

	sorted := Renumber(Clone(items))
	first := *sorted[0]
	rest := Renumber(sorted[1:])
	return &first, rest, nil
}

// Reorder moves one participant's entry to newPosition, shifting the entries
// in between by one. Moving an entry to its current position is a no-op that
// still succeeds. Positions outside 1..N are a validation error, not clamped.
func Reorder(items []*models.QueueItem, participantUID string, newPosition int) ([]*models.QueueItem, error) {
	if newPosition < 1 || newPosition > len(items) {
		return nil, domain.NewValidationError(
			fmt.Sprintf("position %d is outside the queue bounds 1..%d", newPosition, len(items)))
	}

	sorted := Renumber(Clone(items))
	oldIndex := -1
	for i, item := range sorted {
		if item.ParticipantUID == participantUID {
			oldIndex = i
			break
		}
	}
	if oldIndex == -1 {
		return nil, domain.NewNotFoundError("participant not in queue")
	}
	if oldIndex == newPosition-1 {
		return sorted, nil
	}

	moved := sorted[oldIndex]
	sorted = append(sorted[:oldIndex], sorted[oldIndex+1:]...)

	newIndex := newPosition - 1
	sorted = append(sorted[:newIndex], append([]*models.QueueItem{moved}, sorted[newIndex:]...)...)
	return assignPositions(sorted), nil
}

// Validate checks the density invariant: live positions must be exactly
// {1..N} with no duplicate participants.
func Validate(items []*models.QueueItem) error {
	seenPositions := make(map[int]bool, len(items))
	seenParticipants := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Position < 1 || item.Position > len(items) {
			return domain.NewInternalError(
				fmt.Sprintf("position %d is outside 1..%d", item.Position, len(items)))
		}
		if seenPositions[item.Position] {
			return domain.NewInternalError(fmt.Sprintf("duplicate position %d", item.Position))
		}
		if seenParticipants[item.ParticipantUID] {
			return domain.NewInternalError("participant has more than one live entry")
		}
		seenPositions[item.Position] = true
		seenParticipants[item.ParticipantUID] = true
	}
	return nil
}
