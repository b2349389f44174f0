// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package packed lays an index out inside a flat byte region. Every link
// is a 32-bit offset into the region, so the region can be copied,
// written to disk or mapped at another address and still be valid.
package packed

import (
	"encoding/binary"

	bitwise "github.com/absolutelightning/go-bitwise-trie"
)

// Ref is a byte offset of a record inside a region. Records must start on a
// 4-byte boundary and never at offset 0.
type Ref uint32

// Nil is the empty reference.
const Nil Ref = 0

const (
	// ItemBytes is the size of the index fields of one record.
	ItemBytes = 24

	fieldKey     = 0
	fieldParent  = 4
	fieldChild   = 8
	fieldSibling = 16

	// Parent words with both low bits set name a head slot.
	indexTag = 3
)

var endian = binary.LittleEndian

// Items is the item view over records stored in buf. Each record starts
// with key, parent, child0, child1, sibling0, sibling1 as little endian
// 32-bit words.
type Items struct {
	buf []byte
}

func NewItems(buf []byte) Items {
	return Items{buf: buf}
}

func (v Items) word(r Ref, field int) uint32 {
	return endian.Uint32(v.buf[int(r)+field:])
}

func (v Items) setWord(r Ref, field int, x uint32) {
	endian.PutUint32(v.buf[int(r)+field:], x)
}

func sideOffset(right bool) int {
	if right {
		return 4
	}
	return 0
}

func (v Items) Parent(r Ref) Ref { return Ref(v.word(r, fieldParent)) }

func (v Items) SetParent(r, parent Ref) { v.setWord(r, fieldParent, uint32(parent)) }

func (v Items) ParentIsIndex(r Ref) bool { return v.word(r, fieldParent)&indexTag == indexTag }

func (v Items) BitIndex(r Ref) int { return int(v.word(r, fieldParent) >> 2) }

func (v Items) SetParentIsIndex(r Ref, bitIdx int) {
	v.setWord(r, fieldParent, uint32(bitIdx)<<2|indexTag)
}

func (v Items) Child(r Ref, right bool) Ref {
	return Ref(v.word(r, fieldChild+sideOffset(right)))
}

func (v Items) SetChild(r Ref, right bool, child Ref) {
	v.setWord(r, fieldChild+sideOffset(right), uint32(child))
}

func (v Items) Sibling(r Ref, right bool) Ref {
	return Ref(v.word(r, fieldSibling+sideOffset(right)))
}

func (v Items) SetSibling(r Ref, right bool, sibling Ref) {
	v.setWord(r, fieldSibling+sideOffset(right), uint32(sibling))
}

func (v Items) Key(r Ref) uint32 { return v.word(r, fieldKey) }

// SetKey sets the key of a record that is not indexed.
func (v Items) SetKey(r Ref, k uint32) { v.setWord(r, fieldKey, k) }

func (v Items) IsPrimarySibling(r Ref) bool { return v.word(r, fieldParent) != 0 }

// SetIsPrimarySibling is a no-op: setting the parent word makes a record
// primary.
func (v Items) SetIsPrimarySibling(Ref) {}

func (v Items) IsSecondarySibling(r Ref) bool { return v.word(r, fieldParent) == 0 }

func (v Items) SetIsSecondarySibling(r Ref) { v.setWord(r, fieldParent, 0) }

// Clear zeroes the index fields of r, keeping its key.
func (v Items) Clear(r Ref) {
	clear(v.buf[int(r)+fieldParent : int(r)+ItemBytes])
}

var _ bitwise.ItemView[Ref, uint32] = Items{}
