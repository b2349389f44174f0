// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

import "iter"

// ReverseIterator walks an index from its last item to its first.
type ReverseIterator[R comparable, K Unsigned, S Unsigned] struct {
	t   *Trie[R, K, S]
	pos R
}

func (t *Trie[R, K, S]) RBegin() ReverseIterator[R, K, S] {
	return ReverseIterator[R, K, S]{t: t, pos: t.max()}
}

func (t *Trie[R, K, S]) REnd() ReverseIterator[R, K, S] {
	return ReverseIterator[R, K, S]{t: t}
}

func (ri *ReverseIterator[R, K, S]) Valid() bool {
	var zero R
	return ri.t != nil && ri.pos != zero
}

func (ri *ReverseIterator[R, K, S]) Item() R {
	if !ri.Valid() {
		panic("bitwise: dereferencing end iterator")
	}
	return ri.pos
}

func (ri *ReverseIterator[R, K, S]) Key() K {
	return ri.t.items.Key(ri.Item())
}

// Next moves towards the first item.
func (ri *ReverseIterator[R, K, S]) Next() bool {
	if ri.Valid() {
		ri.pos = ri.t.prev(ri.pos)
	}
	return ri.Valid()
}

// Prev moves towards the last item. From REnd it lands on the first item.
func (ri *ReverseIterator[R, K, S]) Prev() bool {
	if ri.t == nil {
		return false
	}
	if ri.Valid() {
		ri.pos = ri.t.next(ri.pos)
	} else {
		ri.pos = ri.t.min()
	}
	return ri.Valid()
}

func (ri *ReverseIterator[R, K, S]) Equal(o ReverseIterator[R, K, S]) bool {
	return ri.t == o.t && ri.pos == o.pos
}

// Base returns a forward iterator at the same item.
func (ri *ReverseIterator[R, K, S]) Base() Iterator[R, K, S] {
	return Iterator[R, K, S]{t: ri.t, pos: ri.pos}
}

// Erase removes the current item and moves to the item before it.
func (ri *ReverseIterator[R, K, S]) Erase() bool {
	r := ri.Item()
	p := ri.t.prev(r)
	ri.t.erase(r)
	ri.pos = p
	return ri.Valid()
}

// Backward yields every item in reverse iteration order.
func (t *Trie[R, K, S]) Backward() iter.Seq[R] {
	return func(yield func(R) bool) {
		for ri := t.RBegin(); ri.Valid(); ri.Next() {
			if !yield(ri.Item()) {
				return
			}
		}
	}
}
