// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package mmap maps writable memory regions for the packed store and the
// free-list allocator, either anonymous or backed by a file.
package mmap

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned when using a mapping after Close.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for sizes that cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrUnsupported is returned where the platform cannot map files.
	ErrUnsupported = errors.New("mmap: file mappings are not supported on this platform")
)

// Mapping is a writable memory region. It owns the underlying bytes and
// unmaps them on Close.
type Mapping struct {
	data   []byte
	file   *os.File
	closed atomic.Bool
	unmap  func([]byte) error
	sync   func([]byte) error
}

// Anon maps size bytes of zeroed private memory.
func Anon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	data, unmap, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// OpenFile maps the file at path read-write and shared, creating it if
// needed. A file shorter than size is extended with zeros; a longer file is
// mapped in full. Writes through Bytes reach the file.
func OpenFile(path string, size int) (*Mapping, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		size = int(fi.Size())
	}
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidSize, path)
	}

	data, unmap, sync, err := osMapFile(f, size)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Mapping{data: data, file: f, unmap: unmap, sync: sync}, nil
}

// Bytes returns the mapped region. The slice is only valid until Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

func (m *Mapping) Size() int {
	return len(m.data)
}

// Sync flushes a file mapping to disk. It does nothing for anonymous
// mappings.
func (m *Mapping) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.sync == nil {
		return nil
	}
	return m.sync(m.data)
}

// Close unmaps the region and closes the backing file. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	var err error
	if m.unmap != nil {
		err = m.unmap(m.data)
	}
	if m.file != nil {
		if cerr := m.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	m.data = nil
	return err
}
