// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

// insert links r into branch bitIdx. The caller holds the branch lock.
func (t *Trie[R, K, S]) insert(r R, key K, bitIdx int) {
	var zero R
	it, h := t.items, t.head
	it.SetChild(r, false, zero)
	it.SetChild(r, true, zero)
	it.SetSibling(r, false, r)
	it.SetSibling(r, true, r)

	node := h.Child(bitIdx)
	if node == zero {
		it.SetParentIsIndex(r, bitIdx)
		it.SetIsPrimarySibling(r)
		h.SetChild(bitIdx, r)
		h.IncrSize()
		return
	}
	keyBit := K(1) << bitIdx
	for {
		if it.Key(node) == key {
			// Join the ring as its last member.
			last := it.Sibling(node, false)
			it.SetIsSecondarySibling(r)
			it.SetSibling(r, true, node)
			it.SetSibling(r, false, last)
			it.SetSibling(last, true, r)
			it.SetSibling(node, false, r)
			h.IncrSize()
			return
		}
		keyBit >>= 1
		right := key&keyBit != 0
		child := it.Child(node, right)
		if child == zero {
			it.SetParent(r, node)
			it.SetIsPrimarySibling(r)
			it.SetChild(node, right, r)
			h.IncrSize()
			return
		}
		node = child
	}
}

// remove unlinks r and returns the item that took over its position, if
// any. The caller holds the branch lock.
func (t *Trie[R, K, S]) remove(r R) R {
	var zero, repl R
	it := t.items
	switch {
	case it.IsSecondarySibling(r):
		t.unring(r)
	case it.Sibling(r, true) != r:
		next := it.Sibling(r, true)
		t.unring(r)
		t.adoptChildren(next, r)
		t.replace(r, next)
		repl = next
	case it.Child(r, false) == zero && it.Child(r, true) == zero:
		t.detach(r)
	default:
		// Pull a leaf out of r's subtree and put it where r was.
		dir := t.toNobble()
		leaf := it.Child(r, dir)
		if leaf == zero {
			leaf = it.Child(r, !dir)
		}
		for {
			c := it.Child(leaf, dir)
			if c == zero {
				c = it.Child(leaf, !dir)
			}
			if c == zero {
				break
			}
			leaf = c
		}
		t.detach(leaf)
		t.adoptChildren(leaf, r)
		t.replace(r, leaf)
		repl = leaf
	}
	t.head.DecrSize()

	it.SetIsSecondarySibling(r)
	it.SetChild(r, false, zero)
	it.SetChild(r, true, zero)
	it.SetSibling(r, false, r)
	it.SetSibling(r, true, r)
	return repl
}

func (t *Trie[R, K, S]) unring(r R) {
	it := t.items
	prev, next := it.Sibling(r, false), it.Sibling(r, true)
	it.SetSibling(prev, true, next)
	it.SetSibling(next, false, prev)
}

// adoptChildren moves the children of from onto to.
func (t *Trie[R, K, S]) adoptChildren(to, from R) {
	var zero R
	it := t.items
	for _, right := range [2]bool{false, true} {
		c := it.Child(from, right)
		it.SetChild(to, right, c)
		if c != zero {
			it.SetParent(c, to)
		}
	}
}

// detach cuts the link pointing at r from its parent or head slot.
func (t *Trie[R, K, S]) detach(r R) {
	var zero R
	it := t.items
	if it.ParentIsIndex(r) {
		t.head.SetChild(it.BitIndex(r), zero)
		return
	}
	p := it.Parent(r)
	it.SetChild(p, it.Child(p, true) == r, zero)
}

// replace points whatever referenced old at n instead.
func (t *Trie[R, K, S]) replace(old, n R) {
	it := t.items
	if it.ParentIsIndex(old) {
		bitIdx := it.BitIndex(old)
		it.SetParentIsIndex(n, bitIdx)
		t.head.SetChild(bitIdx, n)
	} else {
		p := it.Parent(old)
		it.SetParent(n, p)
		it.SetChild(p, it.Child(p, true) == old, n)
	}
	it.SetIsPrimarySibling(n)
}
