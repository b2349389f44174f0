// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

// ItemView reads and writes the housekeeping fields of indexed items. R is a
// reference to an item: a pointer, an offset into a region, anything
// comparable whose zero value means "no item".
//
// Implementations decide the physical layout. The only requirement is that
// the parent field can also say "attached directly to head slot n", and that
// an item whose parent field is unset is a secondary sibling.
type ItemView[R comparable, K Unsigned] interface {
	// Parent returns the item r hangs from. Only valid when
	// ParentIsIndex(r) is false.
	Parent(r R) R
	SetParent(r, parent R)

	// ParentIsIndex reports whether r is attached directly to a head slot.
	ParentIsIndex(r R) bool
	// BitIndex returns the head slot r is attached to.
	BitIndex(r R) int
	SetParentIsIndex(r R, bitIdx int)

	Child(r R, right bool) R
	SetChild(r R, right bool, child R)

	// Sibling returns the previous (false) or next (true) member of the
	// ring of items sharing r's key.
	Sibling(r R, right bool) R
	SetSibling(r R, right bool, sibling R)

	Key(r R) K

	IsPrimarySibling(r R) bool
	SetIsPrimarySibling(r R)
	IsSecondarySibling(r R) bool
	SetIsSecondarySibling(r R)
}

// HeadView reads and writes the head record of an index: the item count and
// one slot per highest-set-bit position.
type HeadView[R comparable, S Unsigned] interface {
	Size() S
	IncrSize()
	DecrSize()
	SetSize(n S)
	// MaxSize is the largest count the head can record.
	MaxSize() S

	// Slots is the number of child slots. It must cover the key width.
	Slots() int
	Child(bitIdx int) R
	SetChild(bitIdx int, r R)

	// LockBranch is called before the engine reads or modifies the branch
	// holding key. bitHint is the branch's slot when the caller already
	// knows it, or -1. The returned token is handed back to UnlockBranch.
	LockBranch(key uint64, exclusive bool, bitHint int) int
	UnlockBranch(token int, exclusive bool)

	// FlipNobbleDir toggles and returns the stored nobble direction. Only
	// NobbleAlternate indexes call it.
	FlipNobbleDir() bool
}

// NoLocks implements the HeadView lock hooks as no-ops. Embed it in head
// types used from a single goroutine.
type NoLocks struct{}

func (NoLocks) LockBranch(uint64, bool, int) int { return 0 }

func (NoLocks) UnlockBranch(int, bool) {}
