// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package p2p

import (
	"context"
	"log/slog"
	"sync"

	"github.com/guitarbeat/stack-master-tool/internal/crdt"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
)

// Session binds one meeting's replica to its transport: local transactions
// are broadcast as update frames, inbound frames are merged into the replica,
// and a joining peer is caught up with a full-state frame.
type Session struct {
	Code string
	Doc  *crdt.Document

	transport Transport

	mu      sync.Mutex
	state   ConnState
	onState func(ConnState)
	closed  bool
}

// NewSession starts a session for a meeting code on the given transport. The
// session immediately requests state from whoever is already in the room.
func NewSession(ctx context.Context, code string, doc *crdt.Document, transport Transport) *Session {
	s := &Session{
		Code:      code,
		Doc:       doc,
		transport: transport,
		state:     ConnStateConnecting,
	}

	go s.frameLoop(ctx)
	go s.stateLoop()

	if err := transport.Broadcast(ctx, Frame{Kind: FrameStateRequest}); err != nil {
		slog.DebugContext(ctx, "state request not sent, no peers yet",
			logging.ErrKey, err, "code", code)
	}

	return s
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnStateChange registers the state transition callback. Only one callback is
// held; registering replaces the previous one.
func (s *Session) OnStateChange(fn func(ConnState)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// Mutate runs a local transaction and broadcasts the resulting update frame.
func (s *Session) Mutate(ctx context.Context, fn func(tx *crdt.Tx)) error {
	frame, err := s.Doc.Transact(fn)
	if err != nil {
		return err
	}
	if frame == nil {
		return nil
	}

	if err := s.transport.Broadcast(ctx, Frame{Kind: FrameUpdate, Data: frame}); err != nil {
		// The mutation is already applied locally; replication resumes through
		// state exchange once the transport recovers.
		slog.WarnContext(ctx, "failed to broadcast update frame",
			logging.ErrKey, err, "code", s.Code)
	}
	return nil
}

func (s *Session) frameLoop(ctx context.Context) {
	for frame := range s.transport.Frames() {
		switch frame.Kind {
		case FrameUpdate:
			if err := s.Doc.ApplyUpdate(frame.Data); err != nil {
				slog.WarnContext(ctx, "dropping malformed update frame",
					logging.ErrKey, err, "code", s.Code, "peer", frame.Peer)
			}

		case FrameState:
			if err := s.Doc.ApplyState(frame.Data); err != nil {
				slog.WarnContext(ctx, "dropping malformed state frame",
					logging.ErrKey, err, "code", s.Code, "peer", frame.Peer)
			}

		case FrameStateRequest:
			state, err := s.Doc.EncodeState()
			if err != nil {
				slog.ErrorContext(ctx, "failed to encode state for joining peer",
					logging.ErrKey, err, "code", s.Code)
				continue
			}
			if err := s.transport.Broadcast(ctx, Frame{Kind: FrameState, Data: state}); err != nil {
				slog.WarnContext(ctx, "failed to send state frame",
					logging.ErrKey, err, "code", s.Code)
			}
		}
	}
}

func (s *Session) stateLoop() {
	for state := range s.transport.States() {
		s.mu.Lock()
		s.state = state
		fn := s.onState
		s.mu.Unlock()

		if fn != nil {
			fn(state)
		}
	}
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.transport.Close()
}
