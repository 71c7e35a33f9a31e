// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingConn struct {
	connected bool
	subjects  []string
	payloads  [][]byte
}

func (c *capturingConn) IsConnected() bool { return c.connected }

func (c *capturingConn) Publish(subject string, data []byte) error {
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestMessageBuilder_SendQueueUpdated(t *testing.T) {
	conn := &capturingConn{connected: true}
	builder := NewMessageBuilder(conn)

	queue := []*models.QueueItem{
		{UID: "item-1", ParticipantUID: "p1", Type: models.QueueTypeSpeak, Position: 1, IsSpeaking: true},
	}
	require.NoError(t, builder.SendQueueUpdated(context.Background(), "meeting-1", queue))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "stackmaster.meetings.meeting-1.queue-updated", conn.subjects[0])

	var msg models.QueueUpdatedMessage
	require.NoError(t, json.Unmarshal(conn.payloads[0], &msg))
	assert.Equal(t, "meeting-1", msg.MeetingUID)
	require.Len(t, msg.Queue, 1)
	assert.True(t, msg.Queue[0].IsSpeaking)
}

func TestMessageBuilder_SendParticipantEvents(t *testing.T) {
	conn := &capturingConn{connected: true}
	builder := NewMessageBuilder(conn)
	ctx := context.Background()

	participant := &models.Participant{UID: "p1", MeetingUID: "meeting-1", Name: "Alice", IsActive: true}

	require.NoError(t, builder.SendParticipantJoined(ctx, "meeting-1", participant))
	require.NoError(t, builder.SendParticipantLeft(ctx, "meeting-1", participant))
	require.NoError(t, builder.SendTitleUpdated(ctx, "meeting-1", "New Title"))

	assert.Equal(t, []string{
		"stackmaster.meetings.meeting-1.participant-joined",
		"stackmaster.meetings.meeting-1.participant-left",
		"stackmaster.meetings.meeting-1.title-updated",
	}, conn.subjects)
}

func TestMessageBuilder_DisconnectedIsUnavailable(t *testing.T) {
	builder := NewMessageBuilder(&capturingConn{connected: false})

	err := builder.SendTitleUpdated(context.Background(), "meeting-1", "title")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}
