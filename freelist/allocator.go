// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package freelist is a boundary-tag allocator over a flat region whose
// free blocks are indexed by size in a packed bitwise index living inside
// the free blocks themselves. It never allocates from the Go heap after
// construction.
package freelist

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	bitwise "github.com/absolutelightning/go-bitwise-trie"
	"github.com/absolutelightning/go-bitwise-trie/internal/mmap"
	"github.com/absolutelightning/go-bitwise-trie/packed"
)

const (
	blockAlign = 8
	// MinBlock is the smallest block: a packed index record plus a footer,
	// rounded up to the alignment.
	MinBlock = 32
	// Overhead is the bookkeeping a used block carries around its payload.
	Overhead = headerBytes + footerBytes

	headerBytes = 8
	footerBytes = 4
	usedBit     = 1
	sizeMask    = ^uint32(blockAlign - 1)

	regionStart = packed.HeadBytes
)

var (
	ErrRegionSize  = errors.New("freelist: unusable region size")
	ErrInvalidSize = errors.New("freelist: invalid allocation size")
	ErrOutOfMemory = errors.New("freelist: out of memory")
	ErrInvalidFree = errors.New("freelist: invalid free")
)

var endian = binary.LittleEndian

// Allocator hands out 8-aligned byte ranges of its region. Offsets are
// relative to the region start. An Allocator is not safe for concurrent
// use.
type Allocator struct {
	region []byte
	end    uint32
	items  packed.Items
	head   packed.Head
	index  *bitwise.Trie[packed.Ref, uint32, uint32]
	rounds int
	logger *slog.Logger
	debug  bool

	mapping   *mmap.Mapping
	freeBytes uint64
	used      int
	usedBytes uint64
}

// New formats region as one large free block and returns an allocator
// over it.
func New(region []byte, opts ...Option) (*Allocator, error) {
	o := newOptions(opts)
	if uint64(len(region)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes do not fit 32-bit offsets", ErrRegionSize, len(region))
	}
	end := uint32(len(region)) & sizeMask
	if end < regionStart+MinBlock {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrRegionSize, len(region), regionStart+MinBlock)
	}
	a := &Allocator{
		region: region,
		end:    end,
		items:  packed.NewItems(region),
		head:   packed.NewHead(region, 0),
		rounds: o.rounds,
		logger: o.logger,
		debug:  o.logger.Enabled(context.Background(), slog.LevelDebug),
	}
	a.head.Reset()
	a.index = packed.NewIndex(region, 0, bitwise.WithNobble(o.nobble))
	if err := a.release(regionStart, end-regionStart); err != nil {
		return nil, err
	}
	a.logger.Debug("formatted region", "bytes", len(region), "usable", end-regionStart)
	return a, nil
}

// NewMapped returns an allocator over a fresh anonymous mapping of size
// bytes. Close unmaps it.
func NewMapped(size int, opts ...Option) (*Allocator, error) {
	m, err := mmap.Anon(size)
	if err != nil {
		return nil, err
	}
	a, err := New(m.Bytes(), opts...)
	if err != nil {
		m.Close()
		return nil, err
	}
	a.mapping = m
	return a, nil
}

// Close releases a mapping created by NewMapped. The allocator must not be
// used afterwards.
func (a *Allocator) Close() error {
	if a.mapping == nil {
		return nil
	}
	return a.mapping.Close()
}

func (a *Allocator) tag(off uint32) uint32 {
	return endian.Uint32(a.region[off:])
}

// setTags writes matching header and footer words for the block at off.
func (a *Allocator) setTags(off, size uint32, used bool) {
	w := size
	if used {
		w |= usedBit
	}
	endian.PutUint32(a.region[off:], w)
	endian.PutUint32(a.region[off+size-footerBytes:], w)
}

// release marks the block at off free and indexes it. The header word
// doubles as the index key.
func (a *Allocator) release(off, size uint32) error {
	a.setTags(off, size, false)
	if err := a.index.Insert(packed.Ref(off)); err != nil {
		return err
	}
	a.freeBytes += uint64(size)
	return nil
}

// take unindexes the free block at off.
func (a *Allocator) take(off uint32) uint32 {
	size := a.tag(off) & sizeMask
	a.index.Erase(packed.Ref(off))
	a.freeBytes -= uint64(size)
	return size
}

func blockSize(n int) (uint32, bool) {
	if n <= 0 || uint64(n) > math.MaxUint32-Overhead-blockAlign {
		return 0, false
	}
	need := (uint32(n) + Overhead + blockAlign - 1) & sizeMask
	if need < MinBlock {
		need = MinBlock
	}
	return need, true
}

// Alloc reserves at least n bytes and returns the offset of the first one.
// The offset is 8-aligned.
func (a *Allocator) Alloc(n int) (uint32, error) {
	need, ok := blockSize(n)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	r, ok := a.index.CloseFind(need, a.rounds)
	if !ok && a.rounds >= 0 {
		r, ok = a.index.NearestFind(need)
	}
	if !ok {
		a.logger.Warn("allocation failed", "size", n, "free_bytes", a.freeBytes, "free_blocks", a.index.Size())
		return 0, fmt.Errorf("%w: no free block of %d bytes", ErrOutOfMemory, need)
	}
	off := uint32(r)
	size := a.take(off)
	if size-need >= MinBlock {
		if err := a.release(off+need, size-need); err != nil {
			return 0, err
		}
		if a.debug {
			a.logger.Debug("split block", "offset", off, "size", size, "kept", need)
		}
		size = need
	}
	a.setTags(off, size, true)
	a.used++
	a.usedBytes += uint64(size)
	return off + headerBytes, nil
}

// Free returns the block holding the payload at off, merging it with free
// neighbours.
func (a *Allocator) Free(off uint32) error {
	if off < regionStart+headerBytes || off >= a.end || off%blockAlign != 0 {
		return fmt.Errorf("%w: offset %d outside region", ErrInvalidFree, off)
	}
	blk := off - headerBytes
	w := a.tag(blk)
	size := w & sizeMask
	if w&usedBit == 0 || size < MinBlock || blk+size > a.end || a.tag(blk+size-footerBytes) != w {
		a.logger.Warn("rejected free", "offset", off, "tag", w)
		return fmt.Errorf("%w: offset %d is not an allocated block", ErrInvalidFree, off)
	}
	a.used--
	a.usedBytes -= uint64(size)
	freed := size

	if next := blk + size; next < a.end {
		if nw := a.tag(next); nw&usedBit == 0 {
			size += a.take(next)
		}
	}
	if blk > regionStart {
		if pw := a.tag(blk - footerBytes); pw&usedBit == 0 {
			prev := blk - pw&sizeMask
			endian.PutUint32(a.region[blk:], 0)
			size += a.take(prev)
			blk = prev
		}
	}
	if a.debug && size != freed {
		a.logger.Debug("coalesced block", "offset", blk, "size", size)
	}
	return a.release(blk, size)
}

// Bytes returns the usable bytes of the allocation at off.
func (a *Allocator) Bytes(off uint32) []byte {
	blk := off - headerBytes
	size := a.tag(blk) & sizeMask
	return a.region[off : blk+size-footerBytes : blk+size-footerBytes]
}

// Stats describes the state of the region.
type Stats struct {
	FreeBytes  uint64
	FreeBlocks int
	UsedBytes  uint64
	UsedBlocks int
}

func (a *Allocator) Stats() Stats {
	return Stats{
		FreeBytes:  a.freeBytes,
		FreeBlocks: int(a.index.Size()),
		UsedBytes:  a.usedBytes,
		UsedBlocks: a.used,
	}
}
