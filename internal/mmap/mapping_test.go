// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build unix

package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnon(t *testing.T) {
	t.Parallel()

	m, err := Anon(1 << 16)
	require.NoError(t, err)
	data := m.Bytes()
	require.Len(t, data, 1<<16)
	require.Equal(t, byte(0), data[100])
	data[100] = 7
	require.Equal(t, byte(7), m.Bytes()[100])
	require.NoError(t, m.Sync())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.Nil(t, m.Bytes())
	require.ErrorIs(t, m.Sync(), ErrClosed)

	_, err = Anon(0)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "region")
	m, err := OpenFile(path, 4096)
	require.NoError(t, err)
	require.Equal(t, 4096, m.Size())
	copy(m.Bytes()[10:], "bitwise")
	require.NoError(t, m.Sync())
	require.NoError(t, m.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "bitwise", string(raw[10:17]))

	// A smaller request maps the whole existing file.
	m, err = OpenFile(path, 16)
	require.NoError(t, err)
	defer m.Close()
	require.Equal(t, 4096, m.Size())
	require.Equal(t, "bitwise", string(m.Bytes()[10:17]))
}

func TestOpenFileEmpty(t *testing.T) {
	t.Parallel()

	_, err := OpenFile(filepath.Join(t.TempDir(), "empty"), 0)
	require.ErrorIs(t, err, ErrInvalidSize)
}
