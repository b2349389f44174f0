// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

import (
	"bytes"
	"math/rand"
	"slices"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

type testItem struct {
	Entry[testItem, uint64]
	id int
}

func newTestItem(key uint64, id int) *testItem {
	item := &testItem{id: id}
	item.SetTrieKey(key)
	return item
}

func insertKeys(t testing.TB, idx *Trie[*testItem, uint64, uint64], keys ...uint64) []*testItem {
	items := make([]*testItem, len(keys))
	for i, k := range keys {
		items[i] = newTestItem(k, i)
		require.NoError(t, idx.Insert(items[i]))
	}
	return items
}

func ids(idx *Trie[*testItem, uint64, uint64]) []int {
	var out []int
	for item := range idx.All() {
		out = append(out, item.id)
	}
	return out
}

func TestHighestBit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key  uint64
		want int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 1},
		{5, 2},
		{1 << 31, 31},
		{1<<63 | 1, 63},
	}
	for _, c := range cases {
		require.Equal(t, c.want, HighestBit(c.key), "key %#x", c.key)
	}
	require.Equal(t, 7, HighestBit(uint8(0xff)))

	require.Equal(t, 8, keyBits[uint8]())
	require.Equal(t, 16, keyBits[uint16]())
	require.Equal(t, 32, keyBits[uint32]())
	require.Equal(t, 64, keyBits[uint64]())
}

func TestTrie_DuplicateKeys(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	items := insertKeys(t, idx, 5, 5, 3, 9)

	require.Equal(t, uint64(4), idx.Size())
	require.Equal(t, 2, idx.Count(5))
	require.Equal(t, 1, idx.Count(3))
	require.Equal(t, 1, idx.Count(9))
	require.Equal(t, 0, idx.Count(4))

	r, ok := idx.Find(5)
	require.True(t, ok)
	require.Same(t, items[0], r)
	r, ok = idx.Find(3)
	require.True(t, ok)
	require.Same(t, items[2], r)
	r, ok = idx.Find(9)
	require.True(t, ok)
	require.Same(t, items[3], r)

	require.Equal(t, []uint64{3, 5, 5, 9}, slices.Collect(idx.Keys()))
	require.Equal(t, []int{2, 0, 1, 3}, ids(idx))
	require.NoError(t, idx.Verify())

	idx.Erase(items[0])
	require.Equal(t, 1, idx.Count(5))
	require.Equal(t, []uint64{3, 5, 9}, slices.Collect(idx.Keys()))
	r, ok = idx.Find(5)
	require.True(t, ok)
	require.Same(t, items[1], r)
	require.NoError(t, idx.Verify())
}

func TestTrie_DuplicateRingOrder(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	items := insertKeys(t, idx, 12, 12, 12, 12, 8, 14)
	require.Equal(t, 4, idx.Count(12))
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, ids(idx))

	// Secondaries leave the ring without disturbing the primary.
	idx.Erase(items[2])
	require.Equal(t, []int{0, 1, 3, 4, 5}, ids(idx))
	require.NoError(t, idx.Verify())

	// The primary hands its position and children to the next in line.
	idx.Erase(items[0])
	require.Equal(t, []int{1, 3, 4, 5}, ids(idx))
	require.NoError(t, idx.Verify())

	r, ok := idx.EraseKey(12)
	require.True(t, ok)
	require.Same(t, items[1], r)
	require.Equal(t, []int{3, 4, 5}, ids(idx))
	require.NoError(t, idx.Verify())
}

func TestTrie_NearestAndCloseFind(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	insertKeys(t, idx, 1, 2, 4, 8)

	_, ok := idx.Find(3)
	require.False(t, ok)

	r, ok := idx.NearestFind(3)
	require.True(t, ok)
	require.Equal(t, uint64(4), r.TrieKey())

	r, ok = idx.CloseFind(3, 0)
	require.True(t, ok)
	require.Equal(t, uint64(4), r.TrieKey())

	r, ok = idx.NearestFind(0)
	require.True(t, ok)
	require.Equal(t, uint64(1), r.TrieKey())

	r, ok = idx.NearestFind(8)
	require.True(t, ok)
	require.Equal(t, uint64(8), r.TrieKey())

	_, ok = idx.NearestFind(9)
	require.False(t, ok)
}

func TestTrie_CloseFindInsideBranch(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	// All in branch 4; 31 lands at the top, the rest below it.
	insertKeys(t, idx, 31, 16, 20, 17, 24, 21)

	r, ok := idx.NearestFind(18)
	require.True(t, ok)
	require.Equal(t, uint64(20), r.TrieKey())

	r, ok = idx.NearestFind(22)
	require.True(t, ok)
	require.Equal(t, uint64(24), r.TrieKey())

	// With no rounds only the top of the branch is looked at.
	r, ok = idx.CloseFind(18, 0)
	require.True(t, ok)
	require.Equal(t, uint64(31), r.TrieKey())

	r, ok = idx.CloseFind(18, 2)
	require.True(t, ok)
	require.GreaterOrEqual(t, r.TrieKey(), uint64(18))
	require.LessOrEqual(t, r.TrieKey(), uint64(31))
}

func TestTrie_ZeroKey(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	items := insertKeys(t, idx, 1, 0, 0)
	require.Equal(t, 2, idx.Count(0))
	require.Equal(t, 1, idx.Count(1))
	require.ElementsMatch(t, []uint64{0, 0, 1}, slices.Collect(idx.Keys()))
	require.NoError(t, idx.Verify())

	r, ok := idx.NearestFind(0)
	require.True(t, ok)
	require.Equal(t, uint64(0), r.TrieKey())

	idx.Erase(items[0])
	r, ok = idx.Find(0)
	require.True(t, ok)
	require.Same(t, items[1], r)
	require.False(t, idx.Contains(1))
	require.NoError(t, idx.Verify())

	other := NewIndex[testItem, uint64]()
	insertKeys(t, other, 0, 1)
	require.Equal(t, []uint64{0, 1}, slices.Collect(other.Keys()))
	require.NoError(t, other.Verify())
}

func TestTrie_Full(t *testing.T) {
	t.Parallel()

	idx := New[*testItem, uint64, uint8](Pointers[testItem, uint64, *testItem]{}, &Head[testItem, uint8]{})
	require.Equal(t, uint8(255), idx.MaxSize())

	for i := 0; i < 255; i++ {
		require.NoError(t, idx.Insert(newTestItem(uint64(i*7), i)))
	}
	require.Equal(t, uint8(255), idx.Size())

	extra := newTestItem(3, 255)
	require.ErrorIs(t, idx.Insert(extra), ErrFull)
	require.Equal(t, Entry[testItem, uint64]{key: 3}, extra.Entry)
	require.Equal(t, uint8(255), idx.Size())
	require.NoError(t, idx.Verify())
}

func TestTrie_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, dir := range []NobbleDir{NobbleZeros, NobbleAlternate, NobbleOnes} {
		rnd := rand.New(rand.NewSource(int64(dir) + 42))
		idx := NewIndex[testItem, uint64](WithNobble(dir))

		items := make([]*testItem, 2000)
		for i := range items {
			var k uint64
			switch i % 3 {
			case 0:
				k = rnd.Uint64()
			case 1:
				k = uint64(rnd.Intn(64)) << 3
			default:
				k = uint64(rnd.Intn(1 << 16))
			}
			items[i] = newTestItem(k, i)
			require.NoError(t, idx.Insert(items[i]))
		}
		require.Equal(t, uint64(len(items)), idx.Size())
		require.NoError(t, idx.Verify())

		for _, item := range items {
			require.True(t, idx.Contains(item.TrieKey()))
		}

		rnd.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		for i, item := range items {
			idx.Erase(item)
			if i%97 == 0 {
				require.NoError(t, idx.Verify(), "nobble %d after %d removals", dir, i+1)
			}
		}
		require.True(t, idx.Empty())
		require.NoError(t, idx.Verify())
		_, ok := idx.Min()
		require.False(t, ok)
	}
}

func TestTrie_FindIsStable(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	insertKeys(t, idx, 100, 7, 100, 64, 3)
	a, _ := idx.Find(100)
	b, _ := idx.Find(100)
	require.Same(t, a, b)
	require.Equal(t, uint64(5), idx.Size())
}

func TestTrie_NearestFindMatchesScan(t *testing.T) {
	t.Parallel()

	check := func(raw []uint64, k uint64, shift uint8) bool {
		shift %= 60
		idx := NewIndex[testItem, uint64]()
		keys := make([]uint64, len(raw))
		for i, v := range raw {
			keys[i] = v >> shift
			if err := idx.Insert(newTestItem(keys[i], i)); err != nil {
				return false
			}
		}
		k >>= shift

		want, found := uint64(0), false
		for _, v := range keys {
			if v >= k && (!found || v < want) {
				want, found = v, true
			}
		}
		r, ok := idx.NearestFind(k)
		if ok != found || (ok && r.TrieKey() != want) {
			return false
		}
		if c, ok := idx.CloseFind(k, 1); ok && c.TrieKey() < k {
			return false
		}
		return idx.Verify() == nil
	}
	require.NoError(t, quick.Check(check, nil))
}

func TestTrie_BranchOrdering(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(7))
	idx := NewIndex[testItem, uint64]()
	var want []uint64
	for i := 0; i < 500; i++ {
		k := rnd.Uint64() >> uint(rnd.Intn(64))
		want = append(want, k)
		require.NoError(t, idx.Insert(newTestItem(k, i)))
	}
	got := slices.Collect(idx.Keys())
	require.ElementsMatch(t, want, got)
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, HighestBit(got[i-1]), HighestBit(got[i]))
	}
}

func TestTrie_FrontBackGet(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	require.Panics(t, func() { idx.Front() })
	require.Panics(t, func() { idx.Back() })
	require.Panics(t, func() { idx.Get(1) })

	items := insertKeys(t, idx, 40, 2, 1000)
	require.Same(t, items[1], idx.Front())
	require.Same(t, items[2], idx.Back())
	require.Same(t, items[0], idx.Get(40))
	require.Panics(t, func() { idx.Get(41) })

	n, ok := idx.Next(items[1])
	require.True(t, ok)
	require.Same(t, items[0], n)
	p, ok := idx.Prev(items[0])
	require.True(t, ok)
	require.Same(t, items[1], p)
	_, ok = idx.Prev(items[1])
	require.False(t, ok)
}

func TestTrie_ClearAndSwap(t *testing.T) {
	t.Parallel()

	a := NewIndex[testItem, uint64]()
	b := NewIndex[testItem, uint64]()
	insertKeys(t, a, 1, 2, 3)
	insertKeys(t, b, 100)

	a.Swap(b)
	require.Equal(t, uint64(1), a.Size())
	require.Equal(t, uint64(3), b.Size())
	require.True(t, a.Contains(100))
	require.True(t, b.Contains(2))
	require.NoError(t, a.Verify())
	require.NoError(t, b.Verify())

	b.Clear()
	require.True(t, b.Empty())
	require.False(t, b.Contains(2))
	require.NoError(t, b.Verify())
}

func TestTrie_VerifyDetectsCorruption(t *testing.T) {
	t.Parallel()

	cases := map[string]func(idx *Trie[*testItem, uint64, uint64], items []*testItem){
		"changed key": func(_ *Trie[*testItem, uint64, uint64], items []*testItem) {
			items[3].SetTrieKey(1 << 40)
		},
		"wrong count": func(idx *Trie[*testItem, uint64, uint64], _ []*testItem) {
			idx.head.SetSize(idx.Size() + 1)
		},
		"broken ring": func(_ *Trie[*testItem, uint64, uint64], items []*testItem) {
			items[1].sibling[0] = items[1]
		},
		"wrong parent": func(_ *Trie[*testItem, uint64, uint64], items []*testItem) {
			items[4].parent = items[3]
		},
		"bad head tag": func(_ *Trie[*testItem, uint64, uint64], items []*testItem) {
			items[0].slot = 9
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			idx := NewIndex[testItem, uint64]()
			// 10 tops branch 3: 9 on its zero side, the 12 ring on its one
			// side, and 14 below the ring.
			items := insertKeys(t, idx, 10, 12, 12, 9, 14)
			require.NoError(t, idx.Verify())

			corrupt(idx, items)
			require.ErrorIs(t, idx.Verify(), ErrCorrupt)
			require.Panics(t, idx.CheckValidity)
		})
	}
}

func TestTrie_Dump(t *testing.T) {
	t.Parallel()

	idx := NewIndex[testItem, uint64]()
	insertKeys(t, idx, 5, 5, 4, 1)
	var buf bytes.Buffer
	idx.Dump(&buf)
	out := buf.String()
	require.Contains(t, out, "size=4")
	require.Contains(t, out, "[0]")
	require.Contains(t, out, "[2]")
	require.Contains(t, out, "0x5 x2")
}

func TestTrie_NoAllocs(t *testing.T) {
	idx := NewIndex[testItem, uint64]()
	items := make([]*testItem, 256)
	for i := range items {
		items[i] = newTestItem(uint64(i*i)+uint64(i%5), i)
	}

	allocs := testing.AllocsPerRun(20, func() {
		for _, item := range items {
			if err := idx.Insert(item); err != nil {
				panic(err)
			}
		}
		idx.Find(49)
		idx.NearestFind(1000)
		idx.Count(4)
		for it := idx.Begin(); it.Valid(); it.Next() {
		}
		for it := idx.RBegin(); it.Valid(); it.Next() {
		}
		for _, item := range items {
			idx.Erase(item)
		}
	})
	require.Zero(t, allocs)
	require.True(t, idx.Empty())
}
