// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package packed

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	bitwise "github.com/absolutelightning/go-bitwise-trie"
	"github.com/absolutelightning/go-bitwise-trie/internal/mmap"
)

const (
	storeMagic   = "BWTS"
	storeVersion = 1

	// RecordBytes is the size of a store record: the index fields followed
	// by a 64-bit value.
	RecordBytes = ItemBytes + 8

	hdrMagic   = 0
	hdrVersion = 4
	hdrRecord  = 8
	hdrHigh    = 12
	hdrFree    = 16
	hdrLive    = 20
	hdrBytes   = 32

	headOffset   = hdrBytes
	firstRecord  = headOffset + HeadBytes
	valueOffset  = ItemBytes
	freeLinkWord = fieldChild
)

var (
	ErrBadMagic   = errors.New("packed: region is not a store")
	ErrBadVersion = errors.New("packed: unsupported store version")
	ErrTooSmall   = errors.New("packed: region too small")
	ErrStoreFull  = errors.New("packed: no free records")
	ErrBadRef     = errors.New("packed: invalid record reference")
)

// Store keeps fixed-size records, each carrying a 32-bit key and a 64-bit
// value, in a single region along with the index over them. Nothing
// outside the region holds state, so a store can be reopened from a copy
// of its bytes or from a file.
//
// A Store is not safe for concurrent use.
type Store struct {
	buf     []byte
	items   Items
	index   *bitwise.Trie[Ref, uint32, uint32]
	mapping *mmap.Mapping
	logger  *slog.Logger
}

// New formats buf as an empty store.
func New(buf []byte, opts ...Option) (*Store, error) {
	if err := checkRegion(buf); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	copy(buf[hdrMagic:], storeMagic)
	endian.PutUint32(buf[hdrVersion:], storeVersion)
	endian.PutUint32(buf[hdrRecord:], RecordBytes)
	endian.PutUint32(buf[hdrHigh:], firstRecord)
	endian.PutUint32(buf[hdrFree:], uint32(Nil))
	endian.PutUint32(buf[hdrLive:], 0)
	NewHead(buf, headOffset).Reset()
	s := newStore(buf, o)
	o.logger.Debug("formatted store", "bytes", len(buf), "capacity", s.Capacity())
	return s, nil
}

// Open resumes a store previously formatted by New.
func Open(buf []byte, opts ...Option) (*Store, error) {
	if err := checkRegion(buf); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	if string(buf[hdrMagic:hdrMagic+4]) != storeMagic {
		return nil, ErrBadMagic
	}
	if v := endian.Uint32(buf[hdrVersion:]); v != storeVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	if rb := endian.Uint32(buf[hdrRecord:]); rb != RecordBytes {
		return nil, fmt.Errorf("%w: record size %d", ErrBadVersion, rb)
	}
	if high := endian.Uint32(buf[hdrHigh:]); high < firstRecord || int(high) > len(buf) || (high-firstRecord)%RecordBytes != 0 {
		return nil, fmt.Errorf("%w: high water mark %d outside region of %d bytes", bitwise.ErrCorrupt, high, len(buf))
	}
	s := newStore(buf, o)
	if err := s.checkRefs(); err != nil {
		o.logger.Warn("rejected store", "error", err)
		return nil, err
	}
	o.logger.Debug("opened store", "records", s.Len(), "indexed", s.index.Size())
	return s, nil
}

// OpenFile maps the file at path and opens the store in it, formatting the
// file first when it does not hold one yet. Changes reach the file through
// the shared mapping; Sync flushes them.
func OpenFile(path string, size int, opts ...Option) (*Store, error) {
	m, err := mmap.OpenFile(path, size)
	if err != nil {
		return nil, err
	}
	buf := m.Bytes()
	var s *Store
	if len(buf) >= 4 && string(buf[hdrMagic:hdrMagic+4]) == storeMagic {
		s, err = Open(buf, opts...)
	} else {
		s, err = New(buf, opts...)
	}
	if err != nil {
		m.Close()
		return nil, err
	}
	s.mapping = m
	return s, nil
}

func checkRegion(buf []byte) error {
	if len(buf) < firstRecord+RecordBytes {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrTooSmall, len(buf), firstRecord+RecordBytes)
	}
	if uint64(len(buf)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes do not fit 32-bit references", ErrTooSmall, len(buf))
	}
	return nil
}

func newStore(buf []byte, o options) *Store {
	return &Store{
		buf:    buf,
		items:  NewItems(buf),
		index:  NewIndex(buf, headOffset, bitwise.WithNobble(o.nobble)),
		logger: o.logger,
	}
}

// Index returns the index over the store's records.
func (s *Store) Index() *bitwise.Trie[Ref, uint32, uint32] {
	return s.index
}

// Items returns the item view over the store's records.
func (s *Store) Items() Items {
	return s.items
}

// Capacity is the total number of records the region can hold.
func (s *Store) Capacity() int {
	return (len(s.buf) - firstRecord) / RecordBytes
}

// Len is the number of allocated records.
func (s *Store) Len() int {
	return int(endian.Uint32(s.buf[hdrLive:]))
}

// Alloc takes a free record, sets its key and value and indexes it.
func (s *Store) Alloc(key uint32, value uint64) (Ref, error) {
	r := Ref(endian.Uint32(s.buf[hdrFree:]))
	if r != Nil {
		endian.PutUint32(s.buf[hdrFree:], s.items.word(r, freeLinkWord))
	} else {
		high := endian.Uint32(s.buf[hdrHigh:])
		if int(high)+RecordBytes > len(s.buf) {
			s.logger.Warn("store full", "records", s.Len(), "capacity", s.Capacity())
			return Nil, ErrStoreFull
		}
		r = Ref(high)
		endian.PutUint32(s.buf[hdrHigh:], high+RecordBytes)
	}
	s.items.SetKey(r, key)
	s.items.Clear(r)
	s.SetValue(r, value)
	if err := s.index.Insert(r); err != nil {
		s.pushFree(r)
		return Nil, err
	}
	endian.PutUint32(s.buf[hdrLive:], uint32(s.Len()+1))
	return r, nil
}

// Release removes r from the index and returns its record to the free
// chain.
func (s *Store) Release(r Ref) error {
	if err := s.check(r); err != nil {
		return err
	}
	if s.items.Sibling(r, true) == Nil {
		return fmt.Errorf("%w: %d is already released", ErrBadRef, r)
	}
	s.index.Erase(r)
	s.pushFree(r)
	endian.PutUint32(s.buf[hdrLive:], uint32(s.Len()-1))
	return nil
}

// pushFree links r into the free chain. Released records have zeroed
// sibling words, which no indexed record has.
func (s *Store) pushFree(r Ref) {
	s.items.Clear(r)
	s.items.setWord(r, freeLinkWord, endian.Uint32(s.buf[hdrFree:]))
	endian.PutUint32(s.buf[hdrFree:], uint32(r))
}

func (s *Store) check(r Ref) error {
	high := endian.Uint32(s.buf[hdrHigh:])
	if uint32(r) < firstRecord || uint32(r) >= high || (uint32(r)-firstRecord)%RecordBytes != 0 {
		return fmt.Errorf("%w: %d", ErrBadRef, r)
	}
	return nil
}

// checkRefs makes sure every reference stored in the region points at a
// record below the high water mark, so walking the index cannot leave the
// region. It reads each record once and does not follow links.
func (s *Store) checkRefs() error {
	high := endian.Uint32(s.buf[hdrHigh:])
	if live := s.Len(); live > int(high-firstRecord)/RecordBytes {
		return fmt.Errorf("%w: %d live records but only %d were ever handed out", bitwise.ErrCorrupt, live, (high-firstRecord)/RecordBytes)
	}
	if r := Ref(endian.Uint32(s.buf[hdrFree:])); r != Nil && s.check(r) != nil {
		return fmt.Errorf("%w: free chain starts at invalid record %d", bitwise.ErrCorrupt, r)
	}
	head := NewHead(s.buf, headOffset)
	for b := 0; b < HeadSlots; b++ {
		if r := head.Child(b); r != Nil && s.check(r) != nil {
			return fmt.Errorf("%w: head slot %d holds invalid record %d", bitwise.ErrCorrupt, b, r)
		}
	}
	for r := Ref(firstRecord); uint32(r) < high; r += RecordBytes {
		if p := s.items.word(r, fieldParent); p&indexTag == indexTag {
			if p>>2 >= HeadSlots {
				return fmt.Errorf("%w: record %d is tagged with head slot %d", bitwise.ErrCorrupt, r, p>>2)
			}
		} else if p != 0 && s.check(Ref(p)) != nil {
			return fmt.Errorf("%w: record %d has invalid parent %d", bitwise.ErrCorrupt, r, p)
		}
		for field := fieldChild; field < ItemBytes; field += 4 {
			if l := Ref(s.items.word(r, field)); l != Nil && s.check(l) != nil {
				return fmt.Errorf("%w: record %d links to invalid record %d", bitwise.ErrCorrupt, r, l)
			}
		}
	}
	return nil
}

// Check verifies that every stored reference stays inside the region and
// then verifies the index structure.
func (s *Store) Check() error {
	if err := s.checkRefs(); err != nil {
		return err
	}
	return s.index.Verify()
}

func (s *Store) Key(r Ref) uint32 {
	return s.items.Key(r)
}

func (s *Store) Value(r Ref) uint64 {
	return endian.Uint64(s.buf[int(r)+valueOffset:])
}

func (s *Store) SetValue(r Ref, v uint64) {
	endian.PutUint64(s.buf[int(r)+valueOffset:], v)
}

// Lookup returns the value of the first record indexed under key.
func (s *Store) Lookup(key uint32) (uint64, bool) {
	r, ok := s.index.Find(key)
	if !ok {
		return 0, false
	}
	return s.Value(r), true
}

// Sync flushes a file-backed store to disk.
func (s *Store) Sync() error {
	if s.mapping == nil {
		return nil
	}
	return s.mapping.Sync()
}

// Close syncs and unmaps a file-backed store. The store must not be used
// afterwards.
func (s *Store) Close() error {
	if s.mapping == nil {
		return nil
	}
	err := s.mapping.Sync()
	if cerr := s.mapping.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.logger.Debug("closed store")
	return err
}
