// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

// Entry holds the housekeeping an item needs to live in a pointer index.
// Embed it in the item type:
//
//	type block struct {
//		bitwise.Entry[block, uint64]
//		data []byte
//	}
//
// An item can be in at most one index through a given Entry.
type Entry[T any, K Unsigned] struct {
	key    K
	parent *T
	// slot is the head slot plus one when attached to the head, else 0.
	slot    uint8
	child   [2]*T
	sibling [2]*T
}

// TrieEntry returns e. It lets Pointers reach the Entry embedded in T.
func (e *Entry[T, K]) TrieEntry() *Entry[T, K] { return e }

// TrieKey returns the key the item is indexed under.
func (e *Entry[T, K]) TrieKey() K { return e.key }

// SetTrieKey sets the key. Changing the key of an indexed item corrupts the
// index.
func (e *Entry[T, K]) SetTrieKey(k K) { e.key = k }

// Indexable is satisfied by *T when T embeds Entry[T, K].
type Indexable[T any, K Unsigned] interface {
	*T
	TrieEntry() *Entry[T, K]
}

// Pointers is the ItemView for items that embed Entry.
type Pointers[T any, K Unsigned, P Indexable[T, K]] struct{}

func entry[T any, K Unsigned, P Indexable[T, K]](r *T) *Entry[T, K] {
	return P(r).TrieEntry()
}

func (Pointers[T, K, P]) Parent(r *T) *T {
	return entry[T, K, P](r).parent
}

func (Pointers[T, K, P]) SetParent(r, parent *T) {
	e := entry[T, K, P](r)
	e.parent = parent
	e.slot = 0
}

func (Pointers[T, K, P]) ParentIsIndex(r *T) bool {
	return entry[T, K, P](r).slot != 0
}

func (Pointers[T, K, P]) BitIndex(r *T) int {
	return int(entry[T, K, P](r).slot) - 1
}

func (Pointers[T, K, P]) SetParentIsIndex(r *T, bitIdx int) {
	e := entry[T, K, P](r)
	e.parent = nil
	e.slot = uint8(bitIdx + 1)
}

func (Pointers[T, K, P]) Child(r *T, right bool) *T {
	return entry[T, K, P](r).child[dirIndex(right)]
}

func (Pointers[T, K, P]) SetChild(r *T, right bool, child *T) {
	entry[T, K, P](r).child[dirIndex(right)] = child
}

func (Pointers[T, K, P]) Sibling(r *T, right bool) *T {
	return entry[T, K, P](r).sibling[dirIndex(right)]
}

func (Pointers[T, K, P]) SetSibling(r *T, right bool, sibling *T) {
	entry[T, K, P](r).sibling[dirIndex(right)] = sibling
}

func (Pointers[T, K, P]) Key(r *T) K {
	return entry[T, K, P](r).key
}

func (Pointers[T, K, P]) IsPrimarySibling(r *T) bool {
	e := entry[T, K, P](r)
	return e.parent != nil || e.slot != 0
}

// SetIsPrimarySibling is a no-op: an item becomes primary as soon as its
// parent is set.
func (Pointers[T, K, P]) SetIsPrimarySibling(*T) {}

func (Pointers[T, K, P]) IsSecondarySibling(r *T) bool {
	e := entry[T, K, P](r)
	return e.parent == nil && e.slot == 0
}

func (Pointers[T, K, P]) SetIsSecondarySibling(r *T) {
	e := entry[T, K, P](r)
	e.parent = nil
	e.slot = 0
}

// Head is the head record for a single-goroutine pointer index. S bounds how
// many items it can count.
type Head[T any, S Unsigned] struct {
	NoLocks
	count    S
	children [MaxKeyBits]*T
	nobble   bool
}

func (h *Head[T, S]) Size() S { return h.count }

func (h *Head[T, S]) IncrSize() { h.count++ }

func (h *Head[T, S]) DecrSize() { h.count-- }

func (h *Head[T, S]) SetSize(n S) { h.count = n }

func (h *Head[T, S]) MaxSize() S { return ^S(0) }

func (h *Head[T, S]) Slots() int { return MaxKeyBits }

func (h *Head[T, S]) Child(bitIdx int) *T { return h.children[bitIdx] }

func (h *Head[T, S]) SetChild(bitIdx int, r *T) { h.children[bitIdx] = r }

func (h *Head[T, S]) FlipNobbleDir() bool {
	h.nobble = !h.nobble
	return h.nobble
}

// NewIndex returns an empty index over items of type T that embed
// Entry[T, K]. It is not safe for concurrent use.
func NewIndex[T any, K Unsigned, P Indexable[T, K]](opts ...Option) *Trie[*T, K, uint64] {
	return New[*T, K, uint64](Pointers[T, K, P]{}, &Head[T, uint64]{}, opts...)
}

// NewSyncIndex returns an empty index over items of type T that embed
// Entry[T, K], guarded by one lock per branch.
func NewSyncIndex[T any, K Unsigned, P Indexable[T, K]](opts ...Option) *Trie[*T, K, uint64] {
	return New[*T, K, uint64](Pointers[T, K, P]{}, &SyncHead[T]{}, opts...)
}

var _ HeadView[*struct{}, uint64] = (*Head[struct{}, uint64])(nil)
