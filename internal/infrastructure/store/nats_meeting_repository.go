// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
)

// NatsMeetingRepository stores meetings in a NATS KV bucket, keyed by meeting
// UID. A secondary code index maps meeting codes to UIDs for lookup by code.
type NatsMeetingRepository struct {
	*NatsBaseRepository[models.Meeting]
	kvStore INatsKeyValue
}

// NewNatsMeetingRepository creates a new NATS KV meetings repository.
func NewNatsMeetingRepository(kvStore INatsKeyValue) *NatsMeetingRepository {
	return &NatsMeetingRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Meeting](kvStore, "meeting"),
		kvStore:            kvStore,
	}
}

// Create stores a new meeting and its code index entry.
func (r *NatsMeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	if err := r.Put(ctx, meeting.UID, meeting); err != nil {
		return err
	}

	if _, err := r.kvStore.Put(ctx, CodeIndexKey(meeting.Code), []byte(meeting.UID)); err != nil {
		// Roll back the meeting record so a half-indexed meeting never exists.
		if delErr := r.DeleteWithoutRevision(ctx, meeting.UID); delErr != nil {
			slog.ErrorContext(ctx, "failed to roll back meeting after code index failure",
				logging.ErrKey, delErr, "meeting_uid", meeting.UID)
		}
		return domain.NewInternalError("failed to index meeting code", err)
	}

	return nil
}

// Get retrieves a meeting by UID.
func (r *NatsMeetingRepository) Get(ctx context.Context, meetingUID string) (*models.Meeting, error) {
	return r.NatsBaseRepository.Get(ctx, meetingUID)
}

// GetWithRevision retrieves a meeting and its KV revision by UID.
func (r *NatsMeetingRepository) GetWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error) {
	return r.NatsBaseRepository.GetWithRevision(ctx, meetingUID)
}

// GetByCode resolves a meeting code through the code index.
func (r *NatsMeetingRepository) GetByCode(ctx context.Context, code string) (*models.Meeting, error) {
	entry, err := r.GetRaw(ctx, CodeIndexKey(code))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, domain.NewNotFoundError(
				fmt.Sprintf("meeting with code '%s' not found", code), err)
		}
		return nil, err
	}

	return r.NatsBaseRepository.Get(ctx, string(entry.Value()))
}

// CodeExists reports whether a meeting code is already taken.
func (r *NatsMeetingRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.GetRaw(ctx, CodeIndexKey(code))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Update updates a meeting with optimistic concurrency control.
func (r *NatsMeetingRepository) Update(ctx context.Context, meeting *models.Meeting, revision uint64) error {
	return r.NatsBaseRepository.Update(ctx, meeting.UID, meeting, revision)
}

// ListAll returns every stored meeting, skipping code index entries.
func (r *NatsMeetingRepository) ListAll(ctx context.Context) ([]*models.Meeting, error) {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	var meetings []*models.Meeting
	for _, key := range keys {
		if IsCodeIndexKey(key) {
			continue
		}

		meeting, err := r.NatsBaseRepository.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "failed to get meeting, skipping",
				"key", key, logging.ErrKey, err)
			continue
		}
		meetings = append(meetings, meeting)
	}

	return meetings, nil
}
