// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes the shape of the index to w, one item per line, indented by
// depth. Rings are shown as a count next to their primary.
func (t *Trie[R, K, S]) Dump(w io.Writer) {
	var zero R
	fmt.Fprintf(w, "size=%d\n", uint64(t.head.Size()))
	for b := 0; b < t.keyBits; b++ {
		tok := t.head.LockBranch(branchKey(b), false, b)
		if top := t.head.Child(b); top != zero {
			fmt.Fprintf(w, "[%d]\n", b)
			t.dumpNode(w, top, "*", 1)
		}
		t.head.UnlockBranch(tok, false)
	}
}

func (t *Trie[R, K, S]) dumpNode(w io.Writer, node R, label string, depth int) {
	var zero R
	it := t.items
	n := 1
	for s := it.Sibling(node, true); s != node && s != zero; s = it.Sibling(s, true) {
		n++
	}
	fmt.Fprintf(w, "%s%s %#x", strings.Repeat("  ", depth), label, uint64(it.Key(node)))
	if n > 1 {
		fmt.Fprintf(w, " x%d", n)
	}
	fmt.Fprintln(w)
	if depth > t.keyBits {
		return
	}
	if c := it.Child(node, false); c != zero {
		t.dumpNode(w, c, "0", depth+1)
	}
	if c := it.Child(node, true); c != zero {
		t.dumpNode(w, c, "1", depth+1)
	}
}
