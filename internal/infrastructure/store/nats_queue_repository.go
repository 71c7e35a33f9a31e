// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
)

// NatsQueueRepository stores each meeting's speaking queue as a single KV
// document keyed by meeting UID. Keeping the whole queue in one document
// makes renumbering atomic: every mutation is a compare-and-swap on the
// document revision.
type NatsQueueRepository struct {
	*NatsBaseRepository[models.Queue]
}

// NewNatsQueueRepository creates a new NATS KV queue repository.
func NewNatsQueueRepository(kvStore INatsKeyValue) *NatsQueueRepository {
	return &NatsQueueRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Queue](kvStore, "queue"),
	}
}

// Get returns a meeting's queue items. A missing document is an empty queue.
func (r *NatsQueueRepository) Get(ctx context.Context, meetingUID string) ([]*models.QueueItem, error) {
	items, _, err := r.GetWithRevision(ctx, meetingUID)
	return items, err
}

// GetWithRevision returns a meeting's queue items and the document revision
// needed for a compare-and-swap update. A missing document yields an empty
// queue at revision zero.
func (r *NatsQueueRepository) GetWithRevision(ctx context.Context, meetingUID string) ([]*models.QueueItem, uint64, error) {
	queue, revision, err := r.NatsBaseRepository.GetWithRevision(ctx, meetingUID)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return []*models.QueueItem{}, 0, nil
		}
		return nil, 0, err
	}

	if queue.Items == nil {
		return []*models.QueueItem{}, revision, nil
	}
	return queue.Items, revision, nil
}

// Put replaces a meeting's queue document without revision checking.
func (r *NatsQueueRepository) Put(ctx context.Context, meetingUID string, items []*models.QueueItem) error {
	return r.NatsBaseRepository.Put(ctx, meetingUID, &models.Queue{
		MeetingUID: meetingUID,
		Items:      items,
	})
}

// Update replaces a meeting's queue document with optimistic concurrency
// control. A conflict error means another writer changed the queue since the
// revision was read.
func (r *NatsQueueRepository) Update(ctx context.Context, meetingUID string, items []*models.QueueItem, revision uint64) error {
	return r.NatsBaseRepository.Update(ctx, meetingUID, &models.Queue{
		MeetingUID: meetingUID,
		Items:      items,
	}, revision)
}

// Purge removes a meeting's queue document entirely.
func (r *NatsQueueRepository) Purge(ctx context.Context, meetingUID string) error {
	err := r.DeleteWithoutRevision(ctx, meetingUID)
	if err != nil && domain.GetErrorType(err) == domain.ErrorTypeNotFound {
		return nil
	}
	return err
}
