// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

// Iteration order visits branches from the lowest slot up. Within a branch
// a node comes before its zero subtree, which comes before its one subtree,
// and the members of a ring follow their primary in insertion order.

func (t *Trie[R, K, S]) min() R {
	var zero R
	if t.head.Size() == 0 {
		return zero
	}
	for b := 0; b < t.keyBits; b++ {
		if r := t.head.Child(b); r != zero {
			return r
		}
	}
	return zero
}

func (t *Trie[R, K, S]) max() R {
	var zero R
	if t.head.Size() == 0 {
		return zero
	}
	for b := t.keyBits - 1; b >= 0; b-- {
		if r := t.lastOfBranch(b); r != zero {
			return r
		}
	}
	return zero
}

func (t *Trie[R, K, S]) next(r R) R {
	var zero R
	key := t.items.Key(r)
	bitIdx := HighestBit(key)
	tok := t.head.LockBranch(uint64(key), false, bitIdx)
	n, done := t.branchNext(r)
	t.head.UnlockBranch(tok, false)
	if n != zero || !done {
		return n
	}
	for b := bitIdx + 1; b < t.keyBits; b++ {
		if c := t.head.Child(b); c != zero {
			return c
		}
	}
	return zero
}

// branchNext returns the successor of r inside its branch. done reports
// that r was the last item of the branch.
func (t *Trie[R, K, S]) branchNext(r R) (R, bool) {
	var zero R
	it := t.items
	s := it.Sibling(r, true)
	if it.IsSecondarySibling(s) {
		return s, false
	}
	if it.IsSecondarySibling(r) {
		r = s
	}
	if c := it.Child(r, false); c != zero {
		return c, false
	}
	if c := it.Child(r, true); c != zero {
		return c, false
	}
	for !it.ParentIsIndex(r) {
		p := it.Parent(r)
		if it.Child(p, false) == r {
			if c := it.Child(p, true); c != zero {
				return c, false
			}
		}
		r = p
	}
	return zero, true
}

func (t *Trie[R, K, S]) prev(r R) R {
	var zero R
	key := t.items.Key(r)
	bitIdx := HighestBit(key)
	tok := t.head.LockBranch(uint64(key), false, bitIdx)
	p, done := t.branchPrev(r)
	t.head.UnlockBranch(tok, false)
	if p != zero || !done {
		return p
	}
	for b := bitIdx - 1; b >= 0; b-- {
		if p := t.lastOfBranch(b); p != zero {
			return p
		}
	}
	return zero
}

// branchPrev returns the predecessor of r inside its branch. done reports
// that r was the first item of the branch.
func (t *Trie[R, K, S]) branchPrev(r R) (R, bool) {
	var zero R
	it := t.items
	if it.IsSecondarySibling(r) {
		return it.Sibling(r, false), false
	}
	if it.ParentIsIndex(r) {
		return zero, true
	}
	p := it.Parent(r)
	if it.Child(p, true) == r {
		if c := it.Child(p, false); c != zero {
			return t.lastOf(c), false
		}
	}
	return it.Sibling(p, false), false
}

func (t *Trie[R, K, S]) lastOfBranch(bitIdx int) R {
	var zero R
	tok := t.head.LockBranch(branchKey(bitIdx), false, bitIdx)
	defer t.head.UnlockBranch(tok, false)
	top := t.head.Child(bitIdx)
	if top == zero {
		return zero
	}
	return t.lastOf(top)
}

// lastOf returns the last item of the subtree rooted at node: the final
// ring member of its deepest rightmost node.
func (t *Trie[R, K, S]) lastOf(node R) R {
	var zero R
	it := t.items
	for {
		c := it.Child(node, true)
		if c == zero {
			c = it.Child(node, false)
		}
		if c == zero {
			return it.Sibling(node, false)
		}
		node = c
	}
}
