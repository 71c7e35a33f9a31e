// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guitarbeat/stack-master-tool/internal/crdt"
	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/domain/models"
	"github.com/guitarbeat/stack-master-tool/internal/p2p"
	"github.com/vmihailenco/msgpack/v5"
)

// Document structure names within a meeting room. Each name carries the
// meeting code so frames for different meetings can never cross-apply.
func participantsStructure(code string) string { return "participants-" + code }
func queueStructure(code string) string        { return "queue-" + code }
func metadataStructure(code string) string     { return "metadata-" + code }

// metadataMeetingKey is the metadata map key holding the meeting record.
const metadataMeetingKey = "meeting"

// queueEntry is the replicated payload of one queue element. Position and
// speaker status are derived from list order at read time; the display name
// is resolved from the participants map so renames never rewrite the list.
type queueEntry struct {
	UID            string           `msgpack:"uid"`
	ParticipantUID string           `msgpack:"participant_uid"`
	Type           models.QueueType `msgpack:"type"`
	Timestamp      time.Time        `msgpack:"ts"`
}

var _ domain.MeetingService = (*P2PService)(nil)

// P2PService implements the meeting service contract over replicated
// documents. Every mutation is a local transaction broadcast to the room;
// there is no central store and no revision to conflict on.
type P2PService struct {
	peer    string
	manager *p2p.SessionManager

	mu        sync.Mutex
	uidToCode map[string]string
}

// NewP2PService creates a peer-to-peer adapter for one local peer.
func NewP2PService(peer string, manager *p2p.SessionManager) *P2PService {
	if peer == "" {
		peer = uuid.New().String()
	}
	return &P2PService{
		peer:      peer,
		manager:   manager,
		uidToCode: make(map[string]string),
	}
}

// Close tears down every open session.
func (s *P2PService) Close() error {
	return s.manager.Close()
}

func (s *P2PService) rememberMeeting(meetingUID, code string) {
	s.mu.Lock()
	s.uidToCode[meetingUID] = code
	s.mu.Unlock()
}

func (s *P2PService) sessionForMeeting(meetingUID string) (*p2p.Session, string, error) {
	s.mu.Lock()
	code, ok := s.uidToCode[meetingUID]
	s.mu.Unlock()
	if !ok {
		return nil, "", domain.NewNotFoundError("meeting is not open on this peer")
	}

	session, ok := s.manager.Get(code)
	if !ok {
		return nil, "", domain.NewNotFoundError("meeting session is closed")
	}
	return session, code, nil
}

func (s *P2PService) readMeeting(session *p2p.Session, code string) (*models.Meeting, error) {
	raw, ok := session.Doc.MapGet(metadataStructure(code), metadataMeetingKey)
	if !ok {
		return nil, domain.NewNotFoundError("meeting not found")
	}
	var meeting models.Meeting
	if err := msgpack.Unmarshal(raw, &meeting); err != nil {
		return nil, domain.NewInternalError("failed to decode meeting record", err)
	}
	return &meeting, nil
}

func (s *P2PService) writeMeeting(ctx context.Context, session *p2p.Session, code string, meeting *models.Meeting) error {
	raw, err := msgpack.Marshal(meeting)
	if err != nil {
		return domain.NewInternalError("failed to encode meeting record", err)
	}
	return session.Mutate(ctx, func(tx *crdt.Tx) {
		tx.MapSet(metadataStructure(code), metadataMeetingKey, raw)
	})
}

func (s *P2PService) readParticipants(session *p2p.Session, code string, includeInactive bool) ([]*models.Participant, error) {
	structure := participantsStructure(code)
	var participants []*models.Participant
	for _, key := range session.Doc.MapKeys(structure) {
		raw, ok := session.Doc.MapGet(structure, key)
		if !ok {
			continue
		}
		var participant models.Participant
		if err := msgpack.Unmarshal(raw, &participant); err != nil {
			return nil, domain.NewInternalError("failed to decode participant record", err)
		}
		if !participant.IsActive && !includeInactive {
			continue
		}
		participants = append(participants, &participant)
	}
	return participants, nil
}

func (s *P2PService) readParticipant(session *p2p.Session, code, participantUID string) (*models.Participant, error) {
	raw, ok := session.Doc.MapGet(participantsStructure(code), participantUID)
	if !ok {
		return nil, domain.NewNotFoundError("participant not found")
	}
	var participant models.Participant
	if err := msgpack.Unmarshal(raw, &participant); err != nil {
		return nil, domain.NewInternalError("failed to decode participant record", err)
	}
	return &participant, nil
}

func (s *P2PService) writeParticipant(ctx context.Context, session *p2p.Session, code string, participant *models.Participant) error {
	raw, err := msgpack.Marshal(participant)
	if err != nil {
		return domain.NewInternalError("failed to encode participant record", err)
	}
	return session.Mutate(ctx, func(tx *crdt.Tx) {
		tx.MapSet(participantsStructure(code), participant.UID, raw)
	})
}

// readQueue derives the live queue from list order: dense positions starting
// at 1, the head marked as speaking, names resolved through the roster.
func (s *P2PService) readQueue(session *p2p.Session, code string) ([]*models.QueueItem, error) {
	entries := session.Doc.ListEntries(queueStructure(code))
	items := make([]*models.QueueItem, 0, len(entries))
	for _, entry := range entries {
		var qe queueEntry
		if err := msgpack.Unmarshal(entry.Value, &qe); err != nil {
			return nil, domain.NewInternalError("failed to decode queue entry", err)
		}

		name := ""
		if participant, err := s.readParticipant(session, code, qe.ParticipantUID); err == nil {
			name = participant.Name
		}

		items = append(items, &models.QueueItem{
			UID:             qe.UID,
			ParticipantUID:  qe.ParticipantUID,
			ParticipantName: name,
			Type:            qe.Type,
			Position:        len(items) + 1,
			Timestamp:       qe.Timestamp,
			IsSpeaking:      len(items) == 0,
		})
	}
	return items, nil
}

// queueElementFor finds the list element carrying a participant's live entry.
func (s *P2PService) queueElementFor(session *p2p.Session, code, participantUID string) (crdt.ID, *queueEntry, bool) {
	for _, entry := range session.Doc.ListEntries(queueStructure(code)) {
		var qe queueEntry
		if err := msgpack.Unmarshal(entry.Value, &qe); err != nil {
			continue
		}
		if qe.ParticipantUID == participantUID {
			return entry.ID, &qe, true
		}
	}
	return crdt.ID{}, nil, false
}

func (s *P2PService) requireActive(session *p2p.Session, code string) (*models.Meeting, error) {
	meeting, err := s.readMeeting(session, code)
	if err != nil {
		return nil, err
	}
	if !meeting.IsActive {
		return nil, domain.NewValidationError("meeting has ended")
	}
	return meeting, nil
}

// CreateMeeting opens a new room and seeds its meeting record. Codes are
// drawn at random; with no central registry a collision is only detected when
// two rooms with the same code meet, which the code length makes unlikely.
func (s *P2PService) CreateMeeting(ctx context.Context, title, facilitatorName, facilitatorUID string) (*models.Meeting, error) {
	title = strings.TrimSpace(title)
	facilitatorName = strings.TrimSpace(facilitatorName)
	if err := validateStruct("invalid meeting", createMeetingInput{
		Title:           title,
		FacilitatorName: facilitatorName,
	}); err != nil {
		return nil, err
	}

	code, err := randomMeetingCode()
	if err != nil {
		return nil, domain.NewInternalError("failed to generate meeting code", err)
	}

	session, err := s.manager.Open(ctx, code)
	if err != nil {
		return nil, err
	}

	meeting := &models.Meeting{
		UID:             uuid.New().String(),
		Code:            code,
		Title:           title,
		FacilitatorName: facilitatorName,
		FacilitatorUID:  facilitatorUID,
		CreatedAt:       time.Now().UTC(),
		IsActive:        true,
	}

	if err := s.writeMeeting(ctx, session, code, meeting); err != nil {
		return nil, err
	}
	s.rememberMeeting(meeting.UID, code)

	slog.InfoContext(ctx, "created peer-to-peer meeting", "code", code, "title", title)
	return meeting, nil
}

// GetMeeting joins the room for a code and returns the replicated state as
// this peer currently sees it.
func (s *P2PService) GetMeeting(ctx context.Context, code string) (*models.MeetingState, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !meetingCodeRegexp.MatchString(code) {
		return nil, domain.NewValidationError("invalid meeting code")
	}

	session, ok := s.manager.Get(code)
	if !ok {
		var err error
		session, err = s.manager.Open(ctx, code)
		if err != nil {
			return nil, err
		}
	}

	meeting, err := s.readMeeting(session, code)
	if err != nil {
		return nil, err
	}
	s.rememberMeeting(meeting.UID, code)

	participants, err := s.readParticipants(session, code, false)
	if err != nil {
		return nil, err
	}
	items, err := s.readQueue(session, code)
	if err != nil {
		return nil, err
	}

	return &models.MeetingState{Meeting: meeting, Participants: participants, Queue: items}, nil
}

// ListMeetings returns the meetings this peer currently holds replicas of.
func (s *P2PService) ListMeetings(ctx context.Context) ([]*models.Meeting, error) {
	s.mu.Lock()
	codes := make([]string, 0, len(s.uidToCode))
	for _, code := range s.uidToCode {
		codes = append(codes, code)
	}
	s.mu.Unlock()

	var meetings []*models.Meeting
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true

		session, ok := s.manager.Get(code)
		if !ok {
			continue
		}
		meeting, err := s.readMeeting(session, code)
		if err != nil {
			continue
		}
		meetings = append(meetings, meeting)
	}
	return meetings, nil
}

// UpdateMeetingTitle renames the meeting; the metadata write replicates to
// every peer in the room.
func (s *P2PService) UpdateMeetingTitle(ctx context.Context, meetingUID, title string) error {
	title = strings.TrimSpace(title)
	if err := validateStruct("invalid meeting title", meetingTitleInput{Title: title}); err != nil {
		return err
	}

	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return err
	}
	meeting, err := s.requireActive(session, code)
	if err != nil {
		return err
	}

	meeting.Title = title
	return s.writeMeeting(ctx, session, code, meeting)
}

// EndMeeting deactivates the meeting and empties its queue, then leaves the
// room.
func (s *P2PService) EndMeeting(ctx context.Context, meetingUID string) error {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return err
	}
	meeting, err := s.readMeeting(session, code)
	if err != nil {
		return err
	}
	if !meeting.IsActive {
		return nil
	}

	meeting.IsActive = false
	if err := s.writeMeeting(ctx, session, code, meeting); err != nil {
		return err
	}
	if err := s.clearQueueElements(ctx, session, code); err != nil {
		return err
	}

	return s.manager.CloseSession(code)
}

// JoinMeeting adds this peer's participant to the room's roster.
func (s *P2PService) JoinMeeting(ctx context.Context, code, name string, isFacilitator bool) (*models.Participant, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if err := validateStruct("invalid join request", joinMeetingInput{Code: code, Name: name}); err != nil {
		return nil, err
	}

	session, ok := s.manager.Get(code)
	if !ok {
		var err error
		session, err = s.manager.Open(ctx, code)
		if err != nil {
			return nil, err
		}
	}

	meeting, err := s.requireActive(session, code)
	if err != nil {
		return nil, err
	}
	if isFacilitator && !strings.EqualFold(name, meeting.FacilitatorName) {
		return nil, domain.NewUnauthorizedError("name does not match the meeting facilitator")
	}

	participant := &models.Participant{
		UID:           uuid.New().String(),
		MeetingUID:    meeting.UID,
		Name:          name,
		IsFacilitator: isFacilitator,
		JoinedAt:      time.Now().UTC(),
		IsActive:      true,
	}
	if err := s.writeParticipant(ctx, session, code, participant); err != nil {
		return nil, err
	}

	s.rememberMeeting(meeting.UID, code)
	return participant, nil
}

// UpdateParticipantName renames a participant. Queue entries resolve names
// through the roster, so no list rewrite is needed.
func (s *P2PService) UpdateParticipantName(ctx context.Context, meetingUID, participantUID, name string) error {
	name = strings.TrimSpace(name)
	if err := validateStruct("invalid participant name", participantNameInput{Name: name}); err != nil {
		return err
	}

	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return err
	}

	participant, err := s.readParticipant(session, code, participantUID)
	if err != nil {
		return err
	}
	participant.Name = name
	return s.writeParticipant(ctx, session, code, participant)
}

// RemoveParticipant soft deletes a participant and drops their queue entry,
// returning the snapshot undo needs.
func (s *P2PService) RemoveParticipant(ctx context.Context, meetingUID, participantUID string) (*models.ParticipantSnapshot, error) {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return nil, err
	}

	participant, err := s.readParticipant(session, code, participantUID)
	if err != nil {
		return nil, err
	}
	if !participant.IsActive {
		return nil, domain.NewNotFoundError("participant already removed")
	}

	snapshot := &models.ParticipantSnapshot{
		Participant: *participant,
		RemovedAt:   time.Now().UTC(),
	}

	if items, err := s.readQueue(session, code); err == nil {
		for _, item := range items {
			if item.ParticipantUID == participantUID {
				snapshot.QueueItem = item
				snapshot.QueuePosition = item.Position
				break
			}
		}
	}

	element, _, inQueue := s.queueElementFor(session, code, participantUID)

	participant.IsActive = false
	raw, err := msgpack.Marshal(participant)
	if err != nil {
		return nil, domain.NewInternalError("failed to encode participant record", err)
	}

	err = session.Mutate(ctx, func(tx *crdt.Tx) {
		tx.MapSet(participantsStructure(code), participantUID, raw)
		if inQueue {
			tx.ListRemove(queueStructure(code), element)
		}
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// RestoreParticipant reverses a soft delete.
func (s *P2PService) RestoreParticipant(ctx context.Context, meetingUID, participantUID string) error {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return err
	}

	participant, err := s.readParticipant(session, code, participantUID)
	if err != nil {
		return err
	}
	if participant.IsActive {
		return nil
	}
	participant.IsActive = true
	return s.writeParticipant(ctx, session, code, participant)
}

// LeaveMeeting removes the participant without capturing an undo snapshot.
func (s *P2PService) LeaveMeeting(ctx context.Context, meetingUID, participantUID string) error {
	_, err := s.RemoveParticipant(ctx, meetingUID, participantUID)
	return err
}

// CanRejoinAsFacilitator reports whether the name matches the facilitator on
// record for the meeting code.
func (s *P2PService) CanRejoinAsFacilitator(ctx context.Context, code, name string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	session, ok := s.manager.Get(code)
	if !ok {
		var err error
		session, err = s.manager.Open(ctx, code)
		if err != nil {
			return false, err
		}
	}

	meeting, err := s.readMeeting(session, code)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(name), meeting.FacilitatorName), nil
}

// JoinQueue appends a participant's entry at the tail of the replicated list.
func (s *P2PService) JoinQueue(ctx context.Context, meetingUID, participantUID string, queueType models.QueueType) (*models.QueueItem, error) {
	if queueType == "" {
		queueType = models.QueueTypeSpeak
	}
	if !queueType.IsValid() {
		return nil, domain.NewValidationError("unknown queue type")
	}

	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return nil, err
	}

	participant, err := s.readParticipant(session, code, participantUID)
	if err != nil {
		return nil, err
	}
	if !participant.IsActive {
		return nil, domain.NewNotFoundError("participant is not in the meeting")
	}

	if _, _, exists := s.queueElementFor(session, code, participantUID); exists {
		return nil, domain.NewConflictError("participant already in queue")
	}

	entry := queueEntry{
		UID:            uuid.New().String(),
		ParticipantUID: participantUID,
		Type:           queueType,
		Timestamp:      time.Now().UTC(),
	}
	raw, err := msgpack.Marshal(&entry)
	if err != nil {
		return nil, domain.NewInternalError("failed to encode queue entry", err)
	}

	err = session.Mutate(ctx, func(tx *crdt.Tx) {
		tx.ListAppend(queueStructure(code), raw)
	})
	if err != nil {
		return nil, err
	}

	items, err := s.readQueue(session, code)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.UID == entry.UID {
			return item, nil
		}
	}
	return nil, domain.NewInternalError("queue entry vanished after append")
}

// LeaveQueue drops a participant's entry; list order keeps the remaining
// positions dense.
func (s *P2PService) LeaveQueue(ctx context.Context, meetingUID, participantUID string) error {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return err
	}

	element, _, ok := s.queueElementFor(session, code, participantUID)
	if !ok {
		return domain.NewNotFoundError("participant not in queue")
	}

	return session.Mutate(ctx, func(tx *crdt.Tx) {
		tx.ListRemove(queueStructure(code), element)
	})
}

// NextSpeaker pops the head of the list and promotes the rest.
func (s *P2PService) NextSpeaker(ctx context.Context, meetingUID string) (*models.QueueItem, error) {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return nil, err
	}

	items, err := s.readQueue(session, code)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.NewNotFoundError("queue is empty")
	}

	head := items[0]
	element, _, ok := s.queueElementFor(session, code, head.ParticipantUID)
	if !ok {
		return nil, domain.NewInternalError("queue head vanished")
	}

	err = session.Mutate(ctx, func(tx *crdt.Tx) {
		tx.ListRemove(queueStructure(code), element)
	})
	if err != nil {
		return nil, err
	}
	return head, nil
}

// ReorderQueueItem moves a participant's entry to newPosition. The move is a
// position rewrite on one element, so a concurrent move of the same element
// resolves to a single winner on every replica.
func (s *P2PService) ReorderQueueItem(ctx context.Context, meetingUID, participantUID string, newPosition int) error {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return err
	}

	items, err := s.readQueue(session, code)
	if err != nil {
		return err
	}
	if newPosition < 1 || newPosition > len(items) {
		return domain.NewValidationError("position is outside the queue bounds")
	}

	current := 0
	found := false
	for _, item := range items {
		if item.ParticipantUID == participantUID {
			current = item.Position
			found = true
			break
		}
	}
	if !found {
		return domain.NewNotFoundError("participant not in queue")
	}
	if current == newPosition {
		return nil
	}

	element, _, ok := s.queueElementFor(session, code, participantUID)
	if !ok {
		return domain.NewNotFoundError("participant not in queue")
	}

	return session.Mutate(ctx, func(tx *crdt.Tx) {
		tx.ListMoveTo(queueStructure(code), element, newPosition-1)
	})
}

func (s *P2PService) clearQueueElements(ctx context.Context, session *p2p.Session, code string) error {
	entries := session.Doc.ListEntries(queueStructure(code))
	if len(entries) == 0 {
		return nil
	}
	return session.Mutate(ctx, func(tx *crdt.Tx) {
		for _, entry := range entries {
			tx.ListRemove(queueStructure(code), entry.ID)
		}
	})
}

// ClearQueue empties the queue in one transaction.
func (s *P2PService) ClearQueue(ctx context.Context, meetingUID string) error {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return err
	}
	return s.clearQueueElements(ctx, session, code)
}

// RestoreQueue replaces the queue with a previously captured sequence.
func (s *P2PService) RestoreQueue(ctx context.Context, meetingUID string, items []*models.QueueItem) error {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return err
	}
	if _, err := s.requireActive(session, code); err != nil {
		return err
	}

	encoded := make([][]byte, 0, len(items))
	for _, item := range items {
		raw, err := msgpack.Marshal(&queueEntry{
			UID:            item.UID,
			ParticipantUID: item.ParticipantUID,
			Type:           item.Type,
			Timestamp:      item.Timestamp,
		})
		if err != nil {
			return domain.NewInternalError("failed to encode queue entry", err)
		}
		encoded = append(encoded, raw)
	}

	existing := session.Doc.ListEntries(queueStructure(code))
	return session.Mutate(ctx, func(tx *crdt.Tx) {
		for _, entry := range existing {
			tx.ListRemove(queueStructure(code), entry.ID)
		}
		for _, raw := range encoded {
			tx.ListAppend(queueStructure(code), raw)
		}
	})
}

// SubscribeToMeeting wires callbacks to replica changes. Every document
// change recomputes the derived state and fans it out; transport failures
// surface through OnError.
func (s *P2PService) SubscribeToMeeting(ctx context.Context, meetingUID string, callbacks domain.MeetingCallbacks) (domain.UnsubscribeFunc, error) {
	session, code, err := s.sessionForMeeting(meetingUID)
	if err != nil {
		return nil, err
	}

	var lastTitle string
	if meeting, err := s.readMeeting(session, code); err == nil {
		lastTitle = meeting.Title
	}

	var titleMu sync.Mutex
	stopObserve := session.Doc.Observe(func() {
		if callbacks.OnParticipantsChanged != nil {
			if participants, err := s.readParticipants(session, code, false); err == nil {
				callbacks.OnParticipantsChanged(participants)
			}
		}
		if callbacks.OnQueueChanged != nil {
			if items, err := s.readQueue(session, code); err == nil {
				callbacks.OnQueueChanged(items)
			}
		}
		if callbacks.OnTitleChanged != nil {
			if meeting, err := s.readMeeting(session, code); err == nil {
				titleMu.Lock()
				changed := meeting.Title != lastTitle
				lastTitle = meeting.Title
				titleMu.Unlock()
				if changed {
					callbacks.OnTitleChanged(meeting.Title)
				}
			}
		}
	})

	session.OnStateChange(func(state p2p.ConnState) {
		if state == p2p.ConnStateError && callbacks.OnError != nil {
			callbacks.OnError(domain.NewUnavailableError("lost connection to meeting peers"))
		}
	})

	var once sync.Once
	return func() {
		once.Do(stopObserve)
	}, nil
}
