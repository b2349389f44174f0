// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package freelist

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	bitwise "github.com/absolutelightning/go-bitwise-trie"
)

// Check walks the region block by block and verifies the boundary tags,
// that no two free blocks are adjacent, and that the free blocks found are
// exactly those in the index. Problems are reported wrapping
// bitwise.ErrCorrupt.
func (a *Allocator) Check() error {
	if err := a.index.Verify(); err != nil {
		return err
	}
	walked := roaring.New()
	var freeBytes, usedBytes uint64
	var used int
	prevFree := false
	for off := uint32(regionStart); off < a.end; {
		w := a.tag(off)
		size := w & sizeMask
		if size < MinBlock || off+size > a.end {
			return fmt.Errorf("%w: block at %d has size %d", bitwise.ErrCorrupt, off, size)
		}
		if f := a.tag(off + size - footerBytes); f != w {
			return fmt.Errorf("%w: block at %d has header %#x but footer %#x", bitwise.ErrCorrupt, off, w, f)
		}
		free := w&usedBit == 0
		if free {
			if prevFree {
				return fmt.Errorf("%w: free block at %d follows another free block", bitwise.ErrCorrupt, off)
			}
			walked.Add(off)
			freeBytes += uint64(size)
		} else {
			used++
			usedBytes += uint64(size)
		}
		prevFree = free
		off += size
	}

	indexed := roaring.New()
	for r := range a.index.All() {
		indexed.Add(uint32(r))
	}
	if !walked.Equals(indexed) {
		missing := roaring.AndNot(walked, indexed)
		stray := roaring.AndNot(indexed, walked)
		return fmt.Errorf("%w: %d free blocks missing from the index, %d indexed blocks not free",
			bitwise.ErrCorrupt, missing.GetCardinality(), stray.GetCardinality())
	}
	if freeBytes != a.freeBytes || usedBytes != a.usedBytes || used != a.used {
		return fmt.Errorf("%w: counters disagree with the region", bitwise.ErrCorrupt)
	}
	return nil
}
