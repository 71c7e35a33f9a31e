// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package crdt

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listValues(d *Document, structure string) []string {
	entries := d.ListEntries(structure)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.Value)
	}
	return out
}

func TestDocument_MapLastWriterWins(t *testing.T) {
	a := NewDocument("peer-a")
	b := NewDocument("peer-b")

	ua, err := a.Transact(func(tx *Tx) { tx.MapSet("metadata", "title", []byte("From A")) })
	require.NoError(t, err)
	ub, err := b.Transact(func(tx *Tx) { tx.MapSet("metadata", "title", []byte("From B")) })
	require.NoError(t, err)

	// Deliver cross-wise; both writes carry clock 1, so the peer ID breaks
	// the tie identically on both replicas.
	require.NoError(t, a.ApplyUpdate(ub))
	require.NoError(t, b.ApplyUpdate(ua))

	va, _ := a.MapGet("metadata", "title")
	vb, _ := b.MapGet("metadata", "title")
	assert.Equal(t, va, vb)
	assert.Equal(t, "From B", string(va))
}

func TestDocument_ConcurrentAppendsKeepBoth(t *testing.T) {
	a := NewDocument("peer-a")
	b := NewDocument("peer-b")

	ua, err := a.Transact(func(tx *Tx) { tx.ListAppend("queue", []byte("alice")) })
	require.NoError(t, err)
	ub, err := b.Transact(func(tx *Tx) { tx.ListAppend("queue", []byte("bob")) })
	require.NoError(t, err)

	require.NoError(t, a.ApplyUpdate(ub))
	require.NoError(t, b.ApplyUpdate(ua))

	assert.Equal(t, listValues(a, "queue"), listValues(b, "queue"))
	assert.ElementsMatch(t, []string{"alice", "bob"}, listValues(a, "queue"))
}

func TestDocument_ApplyUpdateIsIdempotent(t *testing.T) {
	a := NewDocument("peer-a")
	b := NewDocument("peer-b")

	ua, err := a.Transact(func(tx *Tx) { tx.ListAppend("queue", []byte("alice")) })
	require.NoError(t, err)

	require.NoError(t, b.ApplyUpdate(ua))
	require.NoError(t, b.ApplyUpdate(ua))
	require.NoError(t, b.ApplyUpdate(ua))

	assert.Equal(t, []string{"alice"}, listValues(b, "queue"))
}

func TestDocument_RemoveWinsOverLateInsert(t *testing.T) {
	a := NewDocument("peer-a")
	b := NewDocument("peer-b")

	var id ID
	insert, err := a.Transact(func(tx *Tx) { id = tx.ListAppend("queue", []byte("alice")) })
	require.NoError(t, err)
	remove, err := a.Transact(func(tx *Tx) { tx.ListRemove("queue", id) })
	require.NoError(t, err)

	// The removal arrives before the insertion it tombstones.
	require.NoError(t, b.ApplyUpdate(remove))
	require.NoError(t, b.ApplyUpdate(insert))

	assert.Empty(t, listValues(b, "queue"))
}

func TestDocument_ConcurrentMovesConverge(t *testing.T) {
	a := NewDocument("peer-a")
	b := NewDocument("peer-b")

	var first ID
	var frames [][]byte
	for _, name := range []string{"alice", "bob", "carol"} {
		frame, err := a.Transact(func(tx *Tx) {
			id := tx.ListAppend("queue", []byte(name))
			if name == "alice" {
				first = id
			}
		})
		require.NoError(t, err)
		frames = append(frames, frame)
	}
	for _, frame := range frames {
		require.NoError(t, b.ApplyUpdate(frame))
	}

	// Both peers move the same element to different spots concurrently. The
	// element must end up in exactly one place on both replicas.
	ma, err := a.Transact(func(tx *Tx) { tx.ListMoveTo("queue", first, 2) })
	require.NoError(t, err)
	mb, err := b.Transact(func(tx *Tx) { tx.ListMoveTo("queue", first, 1) })
	require.NoError(t, err)

	require.NoError(t, a.ApplyUpdate(mb))
	require.NoError(t, b.ApplyUpdate(ma))

	va := listValues(a, "queue")
	assert.Equal(t, va, listValues(b, "queue"))
	assert.Len(t, va, 3)

	count := 0
	for _, v := range va {
		if v == "alice" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDocument_StateSyncCatchesUpJoiner(t *testing.T) {
	a := NewDocument("peer-a")

	_, err := a.Transact(func(tx *Tx) {
		tx.MapSet("participants", "p1", []byte("alice"))
		tx.MapSet("participants", "p2", []byte("bob"))
		tx.ListAppend("queue", []byte("p1"))
	})
	require.NoError(t, err)

	state, err := a.EncodeState()
	require.NoError(t, err)

	joiner := NewDocument("peer-b")
	require.NoError(t, joiner.ApplyState(state))

	assert.ElementsMatch(t, []string{"p1", "p2"}, joiner.MapKeys("participants"))
	assert.Equal(t, []string{"p1"}, listValues(joiner, "queue"))

	// The joiner's next local write must not collide with history.
	frame, err := joiner.Transact(func(tx *Tx) { tx.ListAppend("queue", []byte("p2")) })
	require.NoError(t, err)
	require.NoError(t, a.ApplyUpdate(frame))
	assert.Equal(t, []string{"p1", "p2"}, listValues(a, "queue"))
}

func TestDocument_ObserveAndUnsubscribe(t *testing.T) {
	d := NewDocument("peer-a")

	fired := 0
	stop := d.Observe(func() { fired++ })

	_, err := d.Transact(func(tx *Tx) { tx.MapSet("metadata", "title", []byte("t")) })
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	stop()
	stop() // calling again is a no-op

	_, err = d.Transact(func(tx *Tx) { tx.MapSet("metadata", "title", []byte("u")) })
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestDocument_ReadsOfAbsentStructures(t *testing.T) {
	d := NewDocument("peer-a")

	_, ok := d.MapGet("metadata", "title")
	assert.False(t, ok)
	assert.Empty(t, d.MapKeys("metadata"))
	assert.Empty(t, d.ListEntries("queue"))

	// Reading must not materialize the structure on the replica.
	_, err := d.Transact(func(tx *Tx) {})
	require.NoError(t, err)
	assert.Empty(t, d.MapKeys("metadata"))
}

func TestDocument_ConcurrentReadersAndWriter(t *testing.T) {
	d := NewDocument("peer-a")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			structure := "structure-" + strconv.Itoa(n)
			for j := 0; j < 200; j++ {
				d.MapGet(structure, "key")
				d.MapKeys(structure)
				d.ListEntries(structure)
			}
		}(i)
	}

	for i := 0; i < 50; i++ {
		_, err := d.Transact(func(tx *Tx) {
			tx.MapSet("metadata", "title", []byte(strconv.Itoa(i)))
			tx.ListAppend("queue", []byte("p"))
		})
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestPositionBetween(t *testing.T) {
	tests := []struct {
		name   string
		before []int
		after  []int
	}{
		{name: "empty list"},
		{name: "append after", before: []int{16}},
		{name: "prepend before", after: []int{16}},
		{name: "between adjacent", before: []int{16}, after: []int{17}},
		{name: "between nested", before: []int{16, 8}, after: []int{16, 9}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos := positionBetween(tc.before, tc.after)
			if tc.before != nil {
				assert.True(t, lessPath(tc.before, pos), "want %v < %v", tc.before, pos)
			}
			if tc.after != nil {
				assert.True(t, lessPath(pos, tc.after), "want %v < %v", pos, tc.after)
			}
		})
	}
}

func lessPath(a, b []int) bool {
	ea := &listElement{Pos: a, ID: ID{Peer: "a"}}
	eb := &listElement{Pos: b, ID: ID{Peer: "b"}}
	return comparePos(ea, eb)
}
