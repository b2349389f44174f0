// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

import (
	"math"
	"sync"
	"sync/atomic"
)

// SyncHead is a pointer index head that can be shared between goroutines.
// Each branch has its own RWMutex, so operations on keys with different
// highest set bits never contend. Clear and Swap are not covered by the
// branch locks.
type SyncHead[T any] struct {
	count    atomic.Uint64
	children [MaxKeyBits]atomic.Pointer[T]
	nobble   atomic.Uint32
	locks    [MaxKeyBits]sync.RWMutex
}

func (h *SyncHead[T]) Size() uint64 { return h.count.Load() }

func (h *SyncHead[T]) IncrSize() { h.count.Add(1) }

func (h *SyncHead[T]) DecrSize() { h.count.Add(math.MaxUint64) }

func (h *SyncHead[T]) SetSize(n uint64) { h.count.Store(n) }

func (h *SyncHead[T]) MaxSize() uint64 { return math.MaxUint64 }

func (h *SyncHead[T]) Slots() int { return MaxKeyBits }

func (h *SyncHead[T]) Child(bitIdx int) *T { return h.children[bitIdx].Load() }

func (h *SyncHead[T]) SetChild(bitIdx int, r *T) { h.children[bitIdx].Store(r) }

func (h *SyncHead[T]) LockBranch(key uint64, exclusive bool, bitHint int) int {
	bitIdx := bitHint
	if bitIdx < 0 {
		bitIdx = HighestBit(key)
	}
	if exclusive {
		h.locks[bitIdx].Lock()
	} else {
		h.locks[bitIdx].RLock()
	}
	return bitIdx
}

func (h *SyncHead[T]) UnlockBranch(token int, exclusive bool) {
	if exclusive {
		h.locks[token].Unlock()
	} else {
		h.locks[token].RUnlock()
	}
}

func (h *SyncHead[T]) FlipNobbleDir() bool {
	return h.nobble.Add(1)&1 == 1
}

var _ HeadView[*struct{}, uint64] = (*SyncHead[struct{}])(nil)
