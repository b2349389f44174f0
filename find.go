// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

// find walks branch bitIdx along the bits of k. The caller holds the lock.
func (t *Trie[R, K, S]) find(k K, bitIdx int) R {
	var zero R
	node := t.head.Child(bitIdx)
	keyBit := K(1) << bitIdx
	for node != zero {
		if t.items.Key(node) == k {
			return node
		}
		keyBit >>= 1
		node = t.items.Child(node, k&keyBit != 0)
	}
	return zero
}

func (t *Trie[R, K, S]) closeFind(k K, rounds int) R {
	var zero R
	if t.head.Size() == 0 {
		return zero
	}
	bitIdx := HighestBit(k)
	r, rounds := t.closeFindBranch(k, bitIdx, rounds)
	if r != zero {
		return r
	}
	// Every key in a higher branch is larger than k.
	for b := bitIdx + 1; b < t.keyBits; b++ {
		if t.head.Child(b) == zero {
			continue
		}
		if r := t.minOfBranch(b, rounds); r != zero {
			return r
		}
	}
	return zero
}

// closeFindBranch looks for the smallest key not below k inside branch
// bitIdx. It returns the rounds left over for the following branches.
func (t *Trie[R, K, S]) closeFindBranch(k K, bitIdx, rounds int) (R, int) {
	var zero R
	it := t.items
	tok := t.head.LockBranch(uint64(k), false, bitIdx)
	defer t.head.UnlockBranch(tok, false)

	node := t.head.Child(bitIdx)
	if node == zero {
		return zero, rounds
	}
	var best, fallback R
	var bestKey K
	keyBit := K(1) << bitIdx
	for {
		nodeKey := it.Key(node)
		if nodeKey == k {
			return node, rounds
		}
		if nodeKey > k && (best == zero || nodeKey < bestKey) {
			best, bestKey = node, nodeKey
		}
		if rounds == 0 {
			break
		}
		keyBit >>= 1
		var next R
		if k&keyBit == 0 {
			// The one side holds only larger keys. The deepest such
			// subtree holds the closest ones.
			if c := it.Child(node, true); c != zero {
				fallback = c
			}
			next = it.Child(node, false)
		} else {
			next = it.Child(node, true)
		}
		if next == zero {
			break
		}
		node = next
		if rounds > 0 {
			rounds--
		}
	}
	if fallback != zero {
		var m R
		m, rounds = t.minOfSubtree(fallback, rounds)
		if mk := it.Key(m); best == zero || mk < bestKey {
			best = m
		}
	}
	return best, rounds
}

func (t *Trie[R, K, S]) minOfBranch(bitIdx, rounds int) R {
	var zero R
	tok := t.head.LockBranch(branchKey(bitIdx), false, bitIdx)
	defer t.head.UnlockBranch(tok, false)
	top := t.head.Child(bitIdx)
	if top == zero {
		return zero
	}
	r, _ := t.minOfSubtree(top, rounds)
	return r
}

// minOfSubtree returns the smallest key under node, looking at most rounds
// levels down when rounds is not negative.
func (t *Trie[R, K, S]) minOfSubtree(node R, rounds int) (R, int) {
	var zero R
	it := t.items
	best, bestKey := node, it.Key(node)
	for rounds != 0 {
		next := it.Child(node, false)
		if next == zero {
			next = it.Child(node, true)
		}
		if next == zero {
			break
		}
		node = next
		if rounds > 0 {
			rounds--
		}
		if k := it.Key(node); k < bestKey {
			best, bestKey = node, k
		}
	}
	return best, rounds
}
