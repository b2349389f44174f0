// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

import "iter"

// Iterator is a position in an index. The zero position is End. Iterators
// are plain values and stay valid across mutations that do not remove the
// item they point at.
type Iterator[R comparable, K Unsigned, S Unsigned] struct {
	t   *Trie[R, K, S]
	pos R
}

// Begin returns an iterator at the first item.
func (t *Trie[R, K, S]) Begin() Iterator[R, K, S] {
	return Iterator[R, K, S]{t: t, pos: t.min()}
}

// End returns the one-past-the-last iterator.
func (t *Trie[R, K, S]) End() Iterator[R, K, S] {
	return Iterator[R, K, S]{t: t}
}

// LowerBound returns an iterator at the item NearestFind(k) would return.
func (t *Trie[R, K, S]) LowerBound(k K) Iterator[R, K, S] {
	return Iterator[R, K, S]{t: t, pos: t.closeFind(k, -1)}
}

// IteratorAt returns an iterator at r, which must be indexed.
func (t *Trie[R, K, S]) IteratorAt(r R) Iterator[R, K, S] {
	return Iterator[R, K, S]{t: t, pos: r}
}

// Valid reports whether the iterator points at an item.
func (i *Iterator[R, K, S]) Valid() bool {
	var zero R
	return i.t != nil && i.pos != zero
}

// Item returns the current item. It panics at End.
func (i *Iterator[R, K, S]) Item() R {
	if !i.Valid() {
		panic("bitwise: dereferencing end iterator")
	}
	return i.pos
}

func (i *Iterator[R, K, S]) Key() K {
	return i.t.items.Key(i.Item())
}

// Next advances to the following item and reports whether there is one.
func (i *Iterator[R, K, S]) Next() bool {
	if i.Valid() {
		i.pos = i.t.next(i.pos)
	}
	return i.Valid()
}

// Prev steps back. Stepping back from End lands on the last item, and
// stepping back from the first item lands on End.
func (i *Iterator[R, K, S]) Prev() bool {
	if i.t == nil {
		return false
	}
	if i.Valid() {
		i.pos = i.t.prev(i.pos)
	} else {
		i.pos = i.t.max()
	}
	return i.Valid()
}

// SeekLowerBound moves the iterator to the item LowerBound(k) would return.
func (i *Iterator[R, K, S]) SeekLowerBound(k K) {
	i.pos = i.t.closeFind(k, -1)
}

func (i *Iterator[R, K, S]) Equal(o Iterator[R, K, S]) bool {
	return i.t == o.t && i.pos == o.pos
}

// Erase removes the current item and moves to the item that followed it.
func (i *Iterator[R, K, S]) Erase() bool {
	var zero R
	r := i.Item()
	n := i.t.next(r)
	if repl := i.t.erase(r); repl != zero {
		// The replacement came from after r and now stands in its place.
		n = repl
	}
	i.pos = n
	return i.Valid()
}

// All yields every item in iteration order.
func (t *Trie[R, K, S]) All() iter.Seq[R] {
	return func(yield func(R) bool) {
		for it := t.Begin(); it.Valid(); it.Next() {
			if !yield(it.Item()) {
				return
			}
		}
	}
}

// Keys yields the key of every item in iteration order.
func (t *Trie[R, K, S]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for it := t.Begin(); it.Valid(); it.Next() {
			if !yield(it.Key()) {
				return
			}
		}
	}
}
