// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package crdt

import "sort"

// listElement is one entry in a replicated ordered list. Identity is the
// insertion ID; Pos is a fractional position path that orders elements
// without renumbering neighbors. A move rewrites Pos under PosClock, so
// concurrent moves of the same element resolve last-writer-wins instead of
// duplicating it.
type listElement struct {
	ID        ID     `msgpack:"id"`
	Pos       []int  `msgpack:"pos"`
	Value     []byte `msgpack:"v"`
	Tombstone bool   `msgpack:"t,omitempty"`
	PosClock  ID     `msgpack:"pc"`
}

// List is a replicated ordered sequence with tombstoned removal.
type List struct {
	elements map[ID]*listElement
}

func newList() *List {
	return &List{elements: make(map[ID]*listElement)}
}

// comparePos orders position paths lexicographically; the element ID breaks
// ties between paths generated concurrently at the same spot.
func comparePos(a, b *listElement) bool {
	pa, pb := a.Pos, b.Pos
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	if len(pa) != len(pb) {
		return len(pa) < len(pb)
	}
	return a.ID.Less(b.ID)
}

// live returns the non-tombstoned elements in list order.
func (l *List) live() []*listElement {
	out := make([]*listElement, 0, len(l.elements))
	for _, el := range l.elements {
		if !el.Tombstone {
			out = append(out, el)
		}
	}
	sort.Slice(out, func(i, j int) bool { return comparePos(out[i], out[j]) })
	return out
}

// positionBetween generates a fresh path strictly between before and after.
// Nil bounds mean the start or end of the list. The step keeps room for later
// inserts on either side before a path has to grow a level.
const positionStep = 16

func positionBetween(before, after []int) []int {
	var out []int
	for i := 0; ; i++ {
		lo := 0
		if i < len(before) {
			lo = before[i]
		}
		hi := lo + 2*positionStep
		if i < len(after) {
			hi = after[i]
		}
		if hi-lo > 1 {
			out = append(out, lo+(hi-lo)/2)
			return out
		}
		// No room at this level, copy the lower bound and descend.
		out = append(out, lo)
	}
}

// applyInsert merges an insertion. Re-inserting a known ID is a no-op.
func (l *List) applyInsert(id ID, pos []int, value []byte) bool {
	if _, ok := l.elements[id]; ok {
		return false
	}
	l.elements[id] = &listElement{ID: id, Pos: pos, Value: value, PosClock: id}
	return true
}

// applyRemove merges a removal. The tombstone sticks even if the element
// arrives later.
func (l *List) applyRemove(id ID) bool {
	el, ok := l.elements[id]
	if !ok {
		l.elements[id] = &listElement{ID: id, Tombstone: true, PosClock: id}
		return true
	}
	if el.Tombstone {
		return false
	}
	el.Tombstone = true
	return true
}

// applyMove merges a position rewrite, keeping the latest writer's position.
func (l *List) applyMove(id ID, pos []int, clock ID) bool {
	el, ok := l.elements[id]
	if !ok {
		return false
	}
	if !el.PosClock.Less(clock) {
		return false
	}
	el.Pos = pos
	el.PosClock = clock
	return true
}

// merge folds another replica's elements in.
func (l *List) merge(other *List) {
	for id, el := range other.elements {
		if el.Tombstone {
			l.applyRemove(id)
			continue
		}
		l.applyInsert(id, el.Pos, el.Value)
		l.applyMove(id, el.Pos, el.PosClock)
	}
}
