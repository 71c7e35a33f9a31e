// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package crdt implements the replicated documents behind the peer-to-peer
// backend: last-writer-wins maps and an ordered list with fractional
// positions. Updates are commutative and idempotent, so replicas converge on
// the same state regardless of delivery order or duplication.
package crdt

// ID is a Lamport timestamp paired with the peer that produced it. The peer
// breaks ties so two concurrent writes never compare equal.
type ID struct {
	Clock uint64 `msgpack:"c"`
	Peer  string `msgpack:"p"`
}

// Less reports whether id happened before other: lower clock first, peer ID
// as the deterministic tie-break.
func (id ID) Less(other ID) bool {
	if id.Clock != other.Clock {
		return id.Clock < other.Clock
	}
	return id.Peer < other.Peer
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.Clock == 0 && id.Peer == ""
}
