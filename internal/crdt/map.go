// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package crdt

// mapEntry is one last-writer-wins register. A delete keeps the entry as a
// tombstone so a stale concurrent set cannot resurrect it.
type mapEntry struct {
	Value   []byte `msgpack:"v"`
	Clock   ID     `msgpack:"id"`
	Deleted bool   `msgpack:"d,omitempty"`
}

// Map is a last-writer-wins key-value structure. Concurrent writes to the
// same key resolve by ID ordering, so every replica keeps the same winner.
type Map struct {
	entries map[string]mapEntry
}

func newMap() *Map {
	return &Map{entries: make(map[string]mapEntry)}
}

// get returns the live value for a key.
func (m *Map) get(key string) ([]byte, bool) {
	entry, ok := m.entries[key]
	if !ok || entry.Deleted {
		return nil, false
	}
	return entry.Value, true
}

// keys returns the live keys in no particular order.
func (m *Map) keys() []string {
	out := make([]string, 0, len(m.entries))
	for key, entry := range m.entries {
		if !entry.Deleted {
			out = append(out, key)
		}
	}
	return out
}

// apply merges one write. It returns false when the incoming clock lost to
// the entry already present, which makes replay and reordering safe.
func (m *Map) apply(key string, value []byte, clock ID, deleted bool) bool {
	if existing, ok := m.entries[key]; ok && !existing.Clock.Less(clock) {
		return false
	}
	m.entries[key] = mapEntry{Value: value, Clock: clock, Deleted: deleted}
	return true
}

// merge folds another replica's entries in, keeping the winner per key.
func (m *Map) merge(other *Map) {
	for key, entry := range other.entries {
		m.apply(key, entry.Value, entry.Clock, entry.Deleted)
	}
}
