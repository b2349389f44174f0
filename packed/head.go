// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package packed

import (
	"math"

	bitwise "github.com/absolutelightning/go-bitwise-trie"
)

const (
	// HeadSlots is one slot per bit of a 32-bit key.
	HeadSlots = 32
	// HeadBytes is the size of a head record: count, nobble flag and one
	// word per slot.
	HeadBytes = 8 + 4*HeadSlots

	headCount    = 0
	headNobble   = 4
	headChildren = 8
)

// Head is the head view over a head record stored at off in buf.
type Head struct {
	bitwise.NoLocks
	buf []byte
	off int
}

func NewHead(buf []byte, off int) Head {
	return Head{buf: buf, off: off}
}

func (h Head) word(field int) uint32 {
	return endian.Uint32(h.buf[h.off+field:])
}

func (h Head) setWord(field int, x uint32) {
	endian.PutUint32(h.buf[h.off+field:], x)
}

func (h Head) Size() uint32 { return h.word(headCount) }

func (h Head) IncrSize() { h.setWord(headCount, h.word(headCount)+1) }

func (h Head) DecrSize() { h.setWord(headCount, h.word(headCount)-1) }

func (h Head) SetSize(n uint32) { h.setWord(headCount, n) }

func (h Head) MaxSize() uint32 { return math.MaxUint32 }

func (h Head) Slots() int { return HeadSlots }

func (h Head) Child(bitIdx int) Ref { return Ref(h.word(headChildren + 4*bitIdx)) }

func (h Head) SetChild(bitIdx int, r Ref) { h.setWord(headChildren+4*bitIdx, uint32(r)) }

func (h Head) FlipNobbleDir() bool {
	n := h.word(headNobble) ^ 1
	h.setWord(headNobble, n)
	return n == 1
}

// Reset zeroes the head record, leaving an empty index.
func (h Head) Reset() {
	clear(h.buf[h.off : h.off+HeadBytes])
}

var _ bitwise.HeadView[Ref, uint32] = Head{}

// NewIndex binds an index to the records in buf and the head record at
// headOff. The head is used as found; call Head.Reset first for a fresh
// index.
func NewIndex(buf []byte, headOff int, opts ...bitwise.Option) *bitwise.Trie[Ref, uint32, uint32] {
	return bitwise.New[Ref, uint32, uint32](NewItems(buf), NewHead(buf, headOff), opts...)
}
