// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package p2p

import (
	"context"
	"sync"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
)

// Transport moves frames between the peers of one room. Implementations
// deliver every broadcast frame to all other members of the room, never back
// to the sender.
type Transport interface {
	// Broadcast sends a frame to the other peers in the room.
	Broadcast(ctx context.Context, frame Frame) error
	// Frames is the stream of inbound frames. The channel closes when the
	// transport closes.
	Frames() <-chan Frame
	// States reports transport connection transitions.
	States() <-chan ConnState
	// Close tears the transport down. Safe to call more than once.
	Close() error
}

// MemoryHub is an in-process transport fabric for tests and single-process
// setups: every peer attached to the same hub room sees every other peer's
// frames.
type MemoryHub struct {
	mu    sync.Mutex
	rooms map[string][]*memoryTransport
}

// NewMemoryHub creates an empty in-process hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{rooms: make(map[string][]*memoryTransport)}
}

// Attach joins a peer to a room and returns its transport.
func (h *MemoryHub) Attach(room, peer string) Transport {
	t := &memoryTransport{
		hub:    h,
		room:   room,
		peer:   peer,
		frames: make(chan Frame, 64),
		states: make(chan ConnState, 8),
	}

	h.mu.Lock()
	h.rooms[room] = append(h.rooms[room], t)
	h.mu.Unlock()

	t.states <- ConnStateConnected
	return t
}

type memoryTransport struct {
	hub    *MemoryHub
	room   string
	peer   string
	frames chan Frame
	states chan ConnState
	closed sync.Once
}

func (t *memoryTransport) Broadcast(ctx context.Context, frame Frame) error {
	frame.Room = t.room
	frame.Peer = t.peer

	t.hub.mu.Lock()
	members := append([]*memoryTransport(nil), t.hub.rooms[t.room]...)
	t.hub.mu.Unlock()

	for _, member := range members {
		if member == t {
			continue
		}
		select {
		case member.frames <- frame:
		case <-ctx.Done():
			return ctx.Err()
		default:
			return domain.NewUnavailableError("peer frame buffer is full")
		}
	}
	return nil
}

func (t *memoryTransport) Frames() <-chan Frame { return t.frames }

func (t *memoryTransport) States() <-chan ConnState { return t.states }

func (t *memoryTransport) Close() error {
	t.closed.Do(func() {
		t.hub.mu.Lock()
		members := t.hub.rooms[t.room]
		for i, member := range members {
			if member == t {
				t.hub.rooms[t.room] = append(members[:i], members[i+1:]...)
				break
			}
		}
		t.hub.mu.Unlock()

		t.states <- ConnStateDisconnected
		close(t.frames)
		close(t.states)
	})
	return nil
}
