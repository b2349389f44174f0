// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// MaxKeyBits is the width of the widest key type an index can use.
const MaxKeyBits = 64

// Unsigned is the set of types usable as keys and item counts.
type Unsigned interface {
	constraints.Unsigned
}

// HighestBit returns the position of the highest set bit of key. Zero has no
// set bit and reports position 0, which it shares with the key 1.
func HighestBit[K Unsigned](key K) int {
	if key == 0 {
		return 0
	}
	return bits.Len64(uint64(key)) - 1
}

// keyBits returns the width of K in bits.
func keyBits[K Unsigned]() int {
	return bits.Len64(uint64(^K(0)))
}

// branchKey returns the smallest key whose highest set bit is bitIdx. It is
// what the lock hooks receive when a whole branch is walked.
func branchKey(bitIdx int) uint64 {
	return uint64(1) << uint(bitIdx)
}

func dirIndex(right bool) int {
	if right {
		return 1
	}
	return 0
}
