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

// TransportFactory opens a transport for a room on behalf of a peer.
type TransportFactory func(ctx context.Context, room, peer string) (Transport, error)

// SessionManager holds at most one session per meeting code. Opening a code
// that already has a session tears the old one down first, so a peer is never
// in the same room twice.
type SessionManager struct {
	peer    string
	factory TransportFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager that opens transports via factory.
func NewSessionManager(peer string, factory TransportFactory) *SessionManager {
	return &SessionManager{
		peer:     peer,
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// roomName maps a meeting code to its relay room.
func roomName(code string) string {
	return "meeting-" + code
}

// Open joins the room for a meeting code and returns its session.
func (m *SessionManager) Open(ctx context.Context, code string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[code]; ok {
		slog.InfoContext(ctx, "replacing existing session for meeting", "code", code)
		if err := existing.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close replaced session",
				logging.ErrKey, err, "code", code)
		}
		delete(m.sessions, code)
	}

	transport, err := m.factory(ctx, roomName(code), m.peer)
	if err != nil {
		return nil, err
	}

	session := NewSession(ctx, code, crdt.NewDocument(m.peer), transport)
	m.sessions[code] = session
	return session, nil
}

// Get returns the live session for a code, if any.
func (m *SessionManager) Get(code string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[code]
	return session, ok
}

// CloseSession tears down the session for one code.
func (m *SessionManager) CloseSession(code string) error {
	m.mu.Lock()
	session, ok := m.sessions[code]
	delete(m.sessions, code)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return session.Close()
}

// Close tears down every session.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var firstErr error
	for _, session := range sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
