// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package bitwise implements an intrusive bitwise (Fredkin) trie over
// unsigned integer keys. Items carry their own links, so inserting,
// removing and searching never allocate.
package bitwise

import "fmt"

// NobbleDir picks which side of the tree supplies the replacement when an
// item with children is removed.
type NobbleDir int

const (
	// NobbleZeros takes the replacement from the zero side. It suits keys
	// with many trailing zero bits, such as aligned sizes or addresses.
	NobbleZeros NobbleDir = -1
	// NobbleAlternate switches sides on every removal.
	NobbleAlternate NobbleDir = 0
	// NobbleOnes takes the replacement from the one side.
	NobbleOnes NobbleDir = 1
)

type options struct {
	nobble NobbleDir
}

type Option func(*options)

// WithNobble sets the replacement policy used on removal.
func WithNobble(dir NobbleDir) Option {
	return func(o *options) {
		switch {
		case dir < 0:
			o.nobble = NobbleZeros
		case dir > 0:
			o.nobble = NobbleOnes
		default:
			o.nobble = NobbleAlternate
		}
	}
}

// Trie is an intrusive bitwise index. It stores nothing itself: every link
// lives in the items and the head record, reached through the two views.
// No operation allocates.
//
// A Trie is as safe for concurrent use as its head's lock hooks make it.
type Trie[R comparable, K Unsigned, S Unsigned] struct {
	items   ItemView[R, K]
	head    HeadView[R, S]
	nobble  NobbleDir
	keyBits int
}

// New binds an index to the given views. The head is adopted as is, so a
// head read back from storage keeps its contents; a zeroed head is empty.
func New[R comparable, K Unsigned, S Unsigned](items ItemView[R, K], head HeadView[R, S], opts ...Option) *Trie[R, K, S] {
	o := options{nobble: NobbleAlternate}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Trie[R, K, S]{
		items:   items,
		head:    head,
		nobble:  o.nobble,
		keyBits: keyBits[K](),
	}
	if head.Slots() < t.keyBits {
		panic(fmt.Sprintf("bitwise: head has %d slots but keys are %d bits wide", head.Slots(), t.keyBits))
	}
	return t
}

// Items returns the item view the index was built with.
func (t *Trie[R, K, S]) Items() ItemView[R, K] {
	return t.items
}

// Size returns the number of indexed items, duplicates included.
func (t *Trie[R, K, S]) Size() S {
	return t.head.Size()
}

func (t *Trie[R, K, S]) Empty() bool {
	return t.head.Size() == 0
}

func (t *Trie[R, K, S]) MaxSize() S {
	return t.head.MaxSize()
}

// Clear empties the index without touching the items, which are left
// holding stale links.
func (t *Trie[R, K, S]) Clear() {
	var zero R
	for b := 0; b < t.head.Slots(); b++ {
		t.head.SetChild(b, zero)
	}
	t.head.SetSize(0)
}

// Swap exchanges the contents of two indexes sharing an item layout.
func (t *Trie[R, K, S]) Swap(o *Trie[R, K, S]) {
	if t == o {
		return
	}
	for b := 0; b < t.keyBits; b++ {
		c := t.head.Child(b)
		t.head.SetChild(b, o.head.Child(b))
		o.head.SetChild(b, c)
	}
	n := t.head.Size()
	t.head.SetSize(o.head.Size())
	o.head.SetSize(n)
}

// Insert adds r, whose key must already be set, to the index. Items with an
// equal key are kept in insertion order. ErrFull is returned without
// touching r when the count cannot grow.
func (t *Trie[R, K, S]) Insert(r R) error {
	if n := t.head.Size(); n >= t.head.MaxSize() || n+1 < n {
		return ErrFull
	}
	key := t.items.Key(r)
	bitIdx := HighestBit(key)
	tok := t.head.LockBranch(uint64(key), true, bitIdx)
	defer t.head.UnlockBranch(tok, true)
	t.insert(r, key, bitIdx)
	return nil
}

// Erase removes r, which must be indexed.
func (t *Trie[R, K, S]) Erase(r R) {
	t.erase(r)
}

// EraseKey removes the first item indexed under k and returns it.
func (t *Trie[R, K, S]) EraseKey(k K) (R, bool) {
	var zero R
	if t.head.Size() == 0 {
		return zero, false
	}
	bitIdx := HighestBit(k)
	tok := t.head.LockBranch(uint64(k), true, bitIdx)
	defer t.head.UnlockBranch(tok, true)
	r := t.find(k, bitIdx)
	if r == zero {
		return zero, false
	}
	t.remove(r)
	return r, true
}

func (t *Trie[R, K, S]) erase(r R) R {
	key := t.items.Key(r)
	bitIdx := HighestBit(key)
	tok := t.head.LockBranch(uint64(key), true, bitIdx)
	defer t.head.UnlockBranch(tok, true)
	return t.remove(r)
}

// Find returns the first item inserted under k.
func (t *Trie[R, K, S]) Find(k K) (R, bool) {
	var zero R
	if t.head.Size() == 0 {
		return zero, false
	}
	bitIdx := HighestBit(k)
	tok := t.head.LockBranch(uint64(k), false, bitIdx)
	defer t.head.UnlockBranch(tok, false)
	r := t.find(k, bitIdx)
	return r, r != zero
}

// Contains reports whether any item is indexed under k.
func (t *Trie[R, K, S]) Contains(k K) bool {
	_, ok := t.Find(k)
	return ok
}

// Count returns the number of items indexed under k.
func (t *Trie[R, K, S]) Count(k K) int {
	var zero R
	if t.head.Size() == 0 {
		return 0
	}
	bitIdx := HighestBit(k)
	tok := t.head.LockBranch(uint64(k), false, bitIdx)
	defer t.head.UnlockBranch(tok, false)
	r := t.find(k, bitIdx)
	if r == zero {
		return 0
	}
	n := 1
	for s := t.items.Sibling(r, true); s != r; s = t.items.Sibling(s, true) {
		n++
	}
	return n
}

// CloseFind returns an item whose key is at least k, descending no more
// than rounds levels below the head slot of k's branch. Moving on to higher
// branches costs no rounds. A negative rounds searches the whole branch and
// makes CloseFind equal to NearestFind. With rounds of 0 only the top item
// of each branch is looked at, so the result may not be the smallest key.
// A bounded search can miss keys deeper in k's branch and report none.
func (t *Trie[R, K, S]) CloseFind(k K, rounds int) (R, bool) {
	var zero R
	r := t.closeFind(k, rounds)
	return r, r != zero
}

// NearestFind returns the item with the smallest key not less than k.
func (t *Trie[R, K, S]) NearestFind(k K) (R, bool) {
	return t.CloseFind(k, -1)
}

// Get returns the first item indexed under k and panics if there is none.
func (t *Trie[R, K, S]) Get(k K) R {
	r, ok := t.Find(k)
	if !ok {
		panic(fmt.Sprintf("bitwise: no item with key %#x", uint64(k)))
	}
	return r
}

// Min returns the first item in iteration order.
func (t *Trie[R, K, S]) Min() (R, bool) {
	var zero R
	r := t.min()
	return r, r != zero
}

// Max returns the last item in iteration order.
func (t *Trie[R, K, S]) Max() (R, bool) {
	var zero R
	r := t.max()
	return r, r != zero
}

// Front is Min for callers that know the index is not empty.
func (t *Trie[R, K, S]) Front() R {
	r, ok := t.Min()
	if !ok {
		panic("bitwise: front of empty index")
	}
	return r
}

// Back is Max for callers that know the index is not empty.
func (t *Trie[R, K, S]) Back() R {
	r, ok := t.Max()
	if !ok {
		panic("bitwise: back of empty index")
	}
	return r
}

// Next returns the item after r in iteration order.
func (t *Trie[R, K, S]) Next(r R) (R, bool) {
	var zero R
	n := t.next(r)
	return n, n != zero
}

// Prev returns the item before r in iteration order.
func (t *Trie[R, K, S]) Prev(r R) (R, bool) {
	var zero R
	p := t.prev(r)
	return p, p != zero
}

func (t *Trie[R, K, S]) toNobble() bool {
	switch {
	case t.nobble < 0:
		return false
	case t.nobble > 0:
		return true
	}
	return t.head.FlipNobbleDir()
}
