// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

// Verify walks the whole index and checks its structure: head tagging,
// parent and child links, key prefixes along every path, sibling rings,
// the recorded count, and that forward and backward traversal both visit
// every item. Violations are returned wrapping ErrCorrupt.
//
// Verify takes each branch lock in turn, so concurrent mutations can
// produce spurious errors. Run it on a quiescent index.
func (t *Trie[R, K, S]) Verify() error {
	var zero R
	var count uint64
	for b := 0; b < t.head.Slots(); b++ {
		top := t.head.Child(b)
		if top == zero {
			continue
		}
		if b >= t.keyBits {
			return corruptf("head slot %d is used but keys are %d bits wide", b, t.keyBits)
		}
		if err := t.verifyBranch(b, &count); err != nil {
			return err
		}
	}
	size := uint64(t.head.Size())
	if count != size {
		return corruptf("found %d items but head records %d", count, size)
	}

	var n uint64
	lastBit := -1
	for r := t.min(); r != zero; r = t.next(r) {
		if n++; n > size {
			return corruptf("forward traversal visits more than %d items", size)
		}
		b := HighestBit(t.items.Key(r))
		if b < lastBit {
			return corruptf("forward traversal went back from branch %d to %d", lastBit, b)
		}
		lastBit = b
	}
	if n != size {
		return corruptf("forward traversal visited %d of %d items", n, size)
	}
	n = 0
	for r := t.max(); r != zero; r = t.prev(r) {
		if n++; n > size {
			return corruptf("backward traversal visits more than %d items", size)
		}
	}
	if n != size {
		return corruptf("backward traversal visited %d of %d items", n, size)
	}
	return nil
}

// CheckValidity panics if Verify finds a problem.
func (t *Trie[R, K, S]) CheckValidity() {
	if err := t.Verify(); err != nil {
		panic(err)
	}
}

func (t *Trie[R, K, S]) verifyBranch(bitIdx int, count *uint64) error {
	var zero R
	it := t.items
	tok := t.head.LockBranch(branchKey(bitIdx), false, bitIdx)
	defer t.head.UnlockBranch(tok, false)

	top := t.head.Child(bitIdx)
	if top == zero {
		return nil
	}
	if !it.IsPrimarySibling(top) || !it.ParentIsIndex(top) {
		return corruptf("item in head slot %d is not tagged as head-attached", bitIdx)
	}
	if b := it.BitIndex(top); b != bitIdx {
		return corruptf("item in head slot %d is tagged with slot %d", bitIdx, b)
	}
	if err := t.verifyKey(top, bitIdx, 0, 0); err != nil {
		return err
	}
	if err := t.verifyRing(top, count); err != nil {
		return err
	}
	for _, right := range [2]bool{false, true} {
		if c := it.Child(top, right); c != zero {
			if err := t.verifyNode(c, top, right, bitIdx, 1, 0, 0, count); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trie[R, K, S]) verifyNode(node, parent R, right bool, bitIdx, depth int, prefix, mask K, count *uint64) error {
	var zero R
	it := t.items
	if depth > t.keyBits {
		return corruptf("branch %d is deeper than %d levels", bitIdx, t.keyBits)
	}
	if !it.IsPrimarySibling(node) || it.ParentIsIndex(node) {
		return corruptf("child at depth %d of branch %d is not a plain primary", depth, bitIdx)
	}
	if it.Parent(node) != parent {
		return corruptf("child %#x at depth %d of branch %d has the wrong parent", uint64(it.Key(node)), depth, bitIdx)
	}
	if pos := bitIdx - depth; pos >= 0 {
		bit := K(1) << pos
		mask |= bit
		if right {
			prefix |= bit
		}
	} else if right {
		return corruptf("one child below bit 0 in branch %d", bitIdx)
	}
	if err := t.verifyKey(node, bitIdx, prefix, mask); err != nil {
		return err
	}
	if err := t.verifyRing(node, count); err != nil {
		return err
	}
	for _, r := range [2]bool{false, true} {
		if c := it.Child(node, r); c != zero {
			if err := t.verifyNode(c, node, r, bitIdx, depth+1, prefix, mask, count); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trie[R, K, S]) verifyKey(node R, bitIdx int, prefix, mask K) error {
	key := t.items.Key(node)
	if b := HighestBit(key); b != bitIdx {
		return corruptf("key %#x sits in branch %d", uint64(key), bitIdx)
	}
	if key&mask != prefix {
		return corruptf("key %#x does not match its path %#x/%#x in branch %d", uint64(key), uint64(prefix), uint64(mask), bitIdx)
	}
	return nil
}

// verifyRing checks the sibling ring of primary and adds its length to
// count.
func (t *Trie[R, K, S]) verifyRing(primary R, count *uint64) error {
	var zero R
	it := t.items
	key := it.Key(primary)
	limit := uint64(t.head.Size())
	n := uint64(1)
	if it.Sibling(it.Sibling(primary, true), false) != primary {
		return corruptf("ring of key %#x has a broken back link", uint64(key))
	}
	for s := it.Sibling(primary, true); s != primary; s = it.Sibling(s, true) {
		if s == zero {
			return corruptf("ring of key %#x is not closed", uint64(key))
		}
		if n++; n > limit {
			return corruptf("ring of key %#x is longer than the index", uint64(key))
		}
		if !it.IsSecondarySibling(s) {
			return corruptf("ring of key %#x has a second primary", uint64(key))
		}
		if it.Child(s, false) != zero || it.Child(s, true) != zero {
			return corruptf("secondary of key %#x has children", uint64(key))
		}
		if k := it.Key(s); k != key {
			return corruptf("ring of key %#x holds key %#x", uint64(key), uint64(k))
		}
		if it.Sibling(it.Sibling(s, true), false) != s {
			return corruptf("ring of key %#x has a broken back link", uint64(key))
		}
	}
	*count += n
	return nil
}
