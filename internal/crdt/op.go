// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package crdt

import "github.com/vmihailenco/msgpack/v5"

// OpKind discriminates the operations an update frame can carry.
type OpKind uint8

const (
	OpMapSet OpKind = iota + 1
	OpMapDelete
	OpListInsert
	OpListRemove
	OpListMove
)

// Op is one replicated mutation. Structure is the document name within the
// room; Key addresses map entries, Element addresses list elements.
type Op struct {
	Kind      OpKind `msgpack:"k"`
	Structure string `msgpack:"s"`
	Key       string `msgpack:"key,omitempty"`
	Element   ID     `msgpack:"el,omitempty"`
	Pos       []int  `msgpack:"pos,omitempty"`
	Value     []byte `msgpack:"v,omitempty"`
	Clock     ID     `msgpack:"id"`
}

// Update is the wire frame broadcast after a transaction: the ops it produced
// in order.
type Update struct {
	Peer string `msgpack:"peer"`
	Ops  []Op   `msgpack:"ops"`
}

// EncodeUpdate serializes an update frame.
func EncodeUpdate(u *Update) ([]byte, error) {
	return msgpack.Marshal(u)
}

// DecodeUpdate deserializes an update frame.
func DecodeUpdate(data []byte) (*Update, error) {
	var u Update
	if err := msgpack.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
