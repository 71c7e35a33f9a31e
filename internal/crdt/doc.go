// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package crdt

import (
	"strconv"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Document is one peer's replica of a room's shared structures. Local
// mutations go through Transact, which produces an update frame to broadcast;
// remote frames are merged with ApplyUpdate. Both paths converge replicas to
// the same state.
type Document struct {
	mu     sync.RWMutex
	peer   string
	clock  uint64
	maps   map[string]*Map
	lists  map[string]*List
	nextOb int
	obs    map[int]func()
}

// NewDocument creates an empty replica owned by the given peer ID.
func NewDocument(peer string) *Document {
	return &Document{
		peer:  peer,
		maps:  make(map[string]*Map),
		lists: make(map[string]*List),
		obs:   make(map[int]func()),
	}
}

// Peer returns the owning peer ID.
func (d *Document) Peer() string {
	return d.peer
}

func (d *Document) mapNamed(name string) *Map {
	m, ok := d.maps[name]
	if !ok {
		m = newMap()
		d.maps[name] = m
	}
	return m
}

func (d *Document) listNamed(name string) *List {
	l, ok := d.lists[name]
	if !ok {
		l = newList()
		d.lists[name] = l
	}
	return l
}

func (d *Document) tick() ID {
	d.clock++
	return ID{Clock: d.clock, Peer: d.peer}
}

func (d *Document) witness(clock ID) {
	if clock.Clock > d.clock {
		d.clock = clock.Clock
	}
}

// Tx collects the ops of one local transaction. It is only valid inside the
// Transact callback that created it.
type Tx struct {
	d   *Document
	ops []Op
}

// MapSet writes a key in a named map.
func (tx *Tx) MapSet(structure, key string, value []byte) {
	clock := tx.d.tick()
	tx.d.mapNamed(structure).apply(key, value, clock, false)
	tx.ops = append(tx.ops, Op{
		Kind: OpMapSet, Structure: structure, Key: key, Value: value, Clock: clock,
	})
}

// MapDelete tombstones a key in a named map.
func (tx *Tx) MapDelete(structure, key string) {
	clock := tx.d.tick()
	tx.d.mapNamed(structure).apply(key, nil, clock, true)
	tx.ops = append(tx.ops, Op{
		Kind: OpMapDelete, Structure: structure, Key: key, Clock: clock,
	})
}

// ListAppend inserts a value after the current last element and returns the
// new element's ID.
func (tx *Tx) ListAppend(structure string, value []byte) ID {
	list := tx.d.listNamed(structure)

	var before []int
	if live := list.live(); len(live) > 0 {
		before = live[len(live)-1].Pos
	}
	pos := positionBetween(before, nil)

	clock := tx.d.tick()
	list.applyInsert(clock, pos, value)
	tx.ops = append(tx.ops, Op{
		Kind: OpListInsert, Structure: structure, Element: clock, Pos: pos, Value: value, Clock: clock,
	})
	return clock
}

// ListRemove tombstones an element.
func (tx *Tx) ListRemove(structure string, element ID) {
	clock := tx.d.tick()
	tx.d.listNamed(structure).applyRemove(element)
	tx.ops = append(tx.ops, Op{
		Kind: OpListRemove, Structure: structure, Element: element, Clock: clock,
	})
}

// ListMoveTo moves an element to the given index among the live elements.
func (tx *Tx) ListMoveTo(structure string, element ID, index int) {
	list := tx.d.listNamed(structure)

	// Compute the neighbor positions as the list stands without the moving
	// element.
	live := list.live()
	others := make([]*listElement, 0, len(live))
	for _, el := range live {
		if el.ID != element {
			others = append(others, el)
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(others) {
		index = len(others)
	}

	var before, after []int
	if index > 0 {
		before = others[index-1].Pos
	}
	if index < len(others) {
		after = others[index].Pos
	}
	pos := positionBetween(before, after)

	clock := tx.d.tick()
	list.applyMove(element, pos, clock)
	tx.ops = append(tx.ops, Op{
		Kind: OpListMove, Structure: structure, Element: element, Pos: pos, Clock: clock,
	})
}

// Transact runs fn under the document lock and returns the encoded update
// frame to broadcast, or nil when fn produced no ops.
func (d *Document) Transact(fn func(tx *Tx)) ([]byte, error) {
	d.mu.Lock()
	tx := &Tx{d: d}
	fn(tx)
	ops := tx.ops
	d.mu.Unlock()

	if len(ops) == 0 {
		return nil, nil
	}

	d.notify()
	return EncodeUpdate(&Update{Peer: d.peer, Ops: ops})
}

// ApplyUpdate merges a remote update frame. Duplicate or reordered frames are
// safe; stale ops lose to what is already applied.
func (d *Document) ApplyUpdate(data []byte) error {
	update, err := DecodeUpdate(data)
	if err != nil {
		return err
	}

	d.mu.Lock()
	changed := false
	for _, op := range update.Ops {
		d.witness(op.Clock)
		switch op.Kind {
		case OpMapSet:
			changed = d.mapNamed(op.Structure).apply(op.Key, op.Value, op.Clock, false) || changed
		case OpMapDelete:
			changed = d.mapNamed(op.Structure).apply(op.Key, nil, op.Clock, true) || changed
		case OpListInsert:
			changed = d.listNamed(op.Structure).applyInsert(op.Element, op.Pos, op.Value) || changed
		case OpListRemove:
			changed = d.listNamed(op.Structure).applyRemove(op.Element) || changed
		case OpListMove:
			changed = d.listNamed(op.Structure).applyMove(op.Element, op.Pos, op.Clock) || changed
		}
	}
	d.mu.Unlock()

	if changed {
		d.notify()
	}
	return nil
}

// docState is the full-state wire shape used when a peer joins and needs to
// catch up in one frame.
type docState struct {
	Clock uint64                            `msgpack:"clock"`
	Maps  map[string]map[string]mapEntry    `msgpack:"maps"`
	Lists map[string]map[string]listElement `msgpack:"lists"`
}

func encodeElementKey(id ID) string {
	return id.Peer + "#" + strconv.FormatUint(id.Clock, 10)
}

// EncodeState serializes the whole replica for a joining peer.
func (d *Document) EncodeState() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state := docState{
		Clock: d.clock,
		Maps:  make(map[string]map[string]mapEntry, len(d.maps)),
		Lists: make(map[string]map[string]listElement, len(d.lists)),
	}
	for name, m := range d.maps {
		entries := make(map[string]mapEntry, len(m.entries))
		for key, entry := range m.entries {
			entries[key] = entry
		}
		state.Maps[name] = entries
	}
	for name, l := range d.lists {
		elements := make(map[string]listElement, len(l.elements))
		for id, el := range l.elements {
			elements[encodeElementKey(id)] = *el
		}
		state.Lists[name] = elements
	}

	return msgpack.Marshal(&state)
}

// ApplyState merges a full-state frame into the replica.
func (d *Document) ApplyState(data []byte) error {
	var state docState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return err
	}

	d.mu.Lock()
	if state.Clock > d.clock {
		d.clock = state.Clock
	}
	for name, entries := range state.Maps {
		m := d.mapNamed(name)
		for key, entry := range entries {
			m.apply(key, entry.Value, entry.Clock, entry.Deleted)
		}
	}
	for name, elements := range state.Lists {
		l := d.listNamed(name)
		other := newList()
		for _, el := range elements {
			copied := el
			other.elements[el.ID] = &copied
		}
		l.merge(other)
	}
	d.mu.Unlock()

	d.notify()
	return nil
}

// MapGet reads a key from a named map. Reads never create the structure, so
// an absent map reports a missing key.
func (d *Document) MapGet(structure, key string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.maps[structure]
	if !ok {
		return nil, false
	}
	return m.get(key)
}

// MapKeys returns the live keys of a named map.
func (d *Document) MapKeys(structure string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.maps[structure]
	if !ok {
		return nil
	}
	return m.keys()
}

// ListEntry pairs an element ID with its value, in list order.
type ListEntry struct {
	ID    ID
	Value []byte
}

// ListEntries returns the live elements of a named list in order. An absent
// list reads as empty without being created.
func (d *Document) ListEntries(structure string) []ListEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	l, ok := d.lists[structure]
	if !ok {
		return nil
	}
	live := l.live()
	out := make([]ListEntry, len(live))
	for i, el := range live {
		out[i] = ListEntry{ID: el.ID, Value: el.Value}
	}
	return out
}

// Observe registers a callback invoked after every state change. The returned
// function removes the observer and is safe to call more than once.
func (d *Document) Observe(fn func()) func() {
	d.mu.Lock()
	id := d.nextOb
	d.nextOb++
	d.obs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.obs, id)
		d.mu.Unlock()
	}
}

func (d *Document) notify() {
	d.mu.RLock()
	observers := make([]func(), 0, len(d.obs))
	for _, fn := range d.obs {
		observers = append(observers, fn)
	}
	d.mu.RUnlock()

	for _, fn := range observers {
		fn()
	}
}
