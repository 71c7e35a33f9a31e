// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package p2p implements the peer-to-peer backend: replicated meeting
// documents synchronized through a websocket signaling relay. Each meeting is
// a room; peers in the room exchange update frames and converge without a
// central store.
package p2p

// ConnState is the lifecycle of a session's transport connection.
type ConnState string

const (
	ConnStateDisconnected ConnState = "disconnected"
	ConnStateConnecting   ConnState = "connecting"
	ConnStateConnected    ConnState = "connected"
	ConnStateError        ConnState = "error"
)

// Frame is the envelope relayed between peers in a room. Payload carries the
// document wire format; the envelope itself is JSON so the relay can route
// without decoding payloads.
type Frame struct {
	Kind string `json:"kind"`
	Room string `json:"room"`
	Peer string `json:"peer"`
	Data []byte `json:"data,omitempty"`
}

// Frame kinds.
const (
	FrameJoin         = "join"
	FrameUpdate       = "update"
	FrameState        = "state"
	FrameStateRequest = "state-request"
)
