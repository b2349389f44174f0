// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

import (
	"math/rand"
	"slices"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

type shortItem struct {
	Entry[shortItem, uint16]
}

func TestIterateLowerBoundFuzz(t *testing.T) {
	idx := NewIndex[shortItem, uint16]()
	var set []uint16

	// Each call adds a key to both the index and a plain slice, then checks
	// that LowerBound lands on the smallest key not below searchKey and that
	// walking on from there visits exactly the rest of the full iteration.
	indexAddAndSeek := func(newKey, searchKey uint16) (uint16, bool, bool) {
		item := &shortItem{}
		item.SetTrieKey(newKey)
		if err := idx.Insert(item); err != nil {
			t.Fatal(err)
		}

		it := idx.LowerBound(searchKey)
		if !it.Valid() {
			return 0, false, true
		}
		found := it.Key()
		var walk []*shortItem
		for it.Valid() {
			walk = append(walk, it.Item())
			it.Next()
		}
		all := slices.Collect(idx.All())
		i := slices.Index(all, walk[0])
		return found, true, i >= 0 && slices.Equal(walk, all[i:])
	}

	sliceAddAndFilter := func(newKey, searchKey uint16) (uint16, bool, bool) {
		set = append(set, newKey)
		slices.Sort(set)
		for _, k := range set {
			if k >= searchKey {
				return k, true, true
			}
		}
		return 0, false, true
	}

	if err := quick.CheckEqual(indexAddAndSeek, sliceAddAndFilter, nil); err != nil {
		t.Error(err)
	}
	require.NoError(t, idx.Verify())
}

func TestIterator_ForwardAndBackward(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(3))
	idx := NewIndex[testItem, uint64]()
	for i := 0; i < 300; i++ {
		require.NoError(t, idx.Insert(newTestItem(uint64(rnd.Intn(500)), i)))
	}

	forward := slices.Collect(idx.All())
	backward := slices.Collect(idx.Backward())
	require.Len(t, forward, 300)
	slices.Reverse(backward)
	require.Equal(t, forward, backward)

	// Walking back with a forward iterator gives the same sequence.
	var back []*testItem
	it := idx.End()
	for it.Prev() {
		back = append(back, it.Item())
	}
	slices.Reverse(back)
	require.Equal(t, forward, back)
}

func TestIterator_EndBehaviour(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	begin, end := idx.Begin(), idx.End()
	require.True(t, begin.Equal(end))
	require.False(t, end.Valid())
	require.Panics(t, func() { end.Item() })
	require.False(t, end.Prev())

	items := insertKeys(t, idx, 6, 2, 33)

	it := idx.End()
	require.True(t, it.Prev())
	require.Same(t, items[2], it.Item())

	it = idx.Begin()
	require.Same(t, items[1], it.Item())
	require.False(t, it.Prev())
	require.True(t, it.Equal(idx.End()))

	rit := idx.REnd()
	require.True(t, rit.Prev())
	require.Same(t, items[1], rit.Item())
	rit = idx.RBegin()
	require.Same(t, items[2], rit.Item())
	base := rit.Base()
	require.Same(t, items[2], base.Item())
	require.False(t, base.Next())
}

func TestIterator_Erase(t *testing.T) {
	t.Parallel()

	for _, dir := range []NobbleDir{NobbleZeros, NobbleAlternate, NobbleOnes} {
		rnd := rand.New(rand.NewSource(11))
		idx := NewIndex[testItem, uint64](WithNobble(dir))
		for i := 0; i < 400; i++ {
			require.NoError(t, idx.Insert(newTestItem(uint64(rnd.Intn(1<<12)), i)))
		}

		// Every item is seen exactly once while the even ones are removed.
		seen := make(map[int]bool)
		it := idx.Begin()
		for it.Valid() {
			item := it.Item()
			require.False(t, seen[item.id], "item %d seen twice", item.id)
			seen[item.id] = true
			if item.TrieKey()%2 == 0 {
				it.Erase()
			} else {
				it.Next()
			}
		}
		require.Len(t, seen, 400)
		require.NoError(t, idx.Verify())
		for k := range idx.Keys() {
			require.Equal(t, uint64(1), k%2)
		}

		rit := idx.RBegin()
		for rit.Valid() {
			rit.Erase()
		}
		require.True(t, idx.Empty())
		require.NoError(t, idx.Verify())
	}
}

func TestIterator_SeekLowerBound(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	items := insertKeys(t, idx, 10, 20, 30)

	it := idx.Begin()
	it.SeekLowerBound(11)
	require.Same(t, items[1], it.Item())
	require.Equal(t, uint64(20), it.Key())

	it.SeekLowerBound(31)
	require.False(t, it.Valid())

	at := idx.IteratorAt(items[0])
	require.True(t, at.Next())
	require.Same(t, items[1], at.Item())
}

func TestIterator_EarlyBreak(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	insertKeys(t, idx, 1, 2, 4, 8, 16)

	var got []uint64
	for k := range idx.Keys() {
		if k > 4 {
			break
		}
		got = append(got, k)
	}
	require.Equal(t, []uint64{1, 2, 4}, got)

	n := 0
	for range idx.Backward() {
		n++
		if n == 2 {
			break
		}
	}
	require.Equal(t, 2, n)
}
