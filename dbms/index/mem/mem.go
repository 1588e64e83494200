// Package mem is a memory-resident B+ tree used as the zero-I/O baseline
// when benchmarking the disk-backed engine.
package mem

import (
	"slices"

	"github.com/btree-query-bench/bpidx/dbms/index"
)

var _ index.Index = (*Tree)(nil)

type node struct {
	leaf     bool
	keys     []int32
	values   []int32 // only populated if leaf
	children []*node // only populated if !leaf
	next     *node   // next leaf for range scans
}

// Tree is an in-memory B+ tree of minimum degree t (max keys = 2t-1).
type Tree struct {
	t    int
	root *node
}

func New(t int) *Tree {
	if t < 2 {
		t = 2
	}
	return &Tree{t: t, root: &node{leaf: true}}
}

// ─── Point query ──────────────────────────────────────────────────────────────

func (bt *Tree) Search(key int32) (int32, bool, error) {
	n := bt.findLeaf(key)
	idx, found := slices.BinarySearch(n.keys, key)
	if !found {
		return 0, false, nil
	}
	return n.values[idx], true, nil
}

func (bt *Tree) findLeaf(key int32) *node {
	curr := bt.root
	for !curr.leaf {
		i := 0
		for i < len(curr.keys) && key >= curr.keys[i] {
			i++
		}
		curr = curr.children[i]
	}
	return curr
}

// ─── Insert ───────────────────────────────────────────────────────────────────

// Insert adds a key/value pair; inserting an existing key is a no-op, to
// match the disk engine's duplicate handling.
func (bt *Tree) Insert(key, value int32) error {
	root := bt.root
	if len(root.keys) == 2*bt.t-1 {
		newRoot := &node{children: []*node{root}}
		bt.splitChild(newRoot, 0)
		bt.root = newRoot
	}
	bt.insertNonFull(bt.root, key, value)
	return nil
}

func (bt *Tree) insertNonFull(x *node, k, v int32) {
	if x.leaf {
		idx, found := slices.BinarySearch(x.keys, k)
		if found {
			return
		}
		x.keys = slices.Insert(x.keys, idx, k)
		x.values = slices.Insert(x.values, idx, v)
		return
	}
	i := 0
	for i < len(x.keys) && k >= x.keys[i] {
		i++
	}
	if len(x.children[i].keys) == 2*bt.t-1 {
		bt.splitChild(x, i)
		if k >= x.keys[i] {
			i++
		}
	}
	bt.insertNonFull(x.children[i], k, v)
}

func (bt *Tree) splitChild(x *node, i int) {
	t := bt.t
	y := x.children[i]
	z := &node{leaf: y.leaf}

	if y.leaf {
		// Leaf split: the first key of the new leaf is copied to the parent.
		z.keys = append([]int32{}, y.keys[t-1:]...)
		z.values = append([]int32{}, y.values[t-1:]...)
		z.next = y.next
		y.next = z

		y.keys = y.keys[:t-1]
		y.values = y.values[:t-1]

		x.keys = slices.Insert(x.keys, i, z.keys[0])
	} else {
		// Internal split: the middle key moves up and leaves both halves.
		z.keys = append([]int32{}, y.keys[t:]...)
		z.children = append([]*node{}, y.children[t:]...)

		midKey := y.keys[t-1]
		y.keys = y.keys[:t-1]
		y.children = y.children[:t]

		x.keys = slices.Insert(x.keys, i, midKey)
	}
	x.children = slices.Insert(x.children, i+1, z)
}

// ─── Delete ───────────────────────────────────────────────────────────────────

// Delete removes the key from its leaf. As a bench baseline this tree does
// not rebalance; separators above keep routing correctly regardless.
func (bt *Tree) Delete(key int32) (bool, error) {
	n := bt.findLeaf(key)
	idx, found := slices.BinarySearch(n.keys, key)
	if !found {
		return false, nil
	}
	n.keys = slices.Delete(n.keys, idx, idx+1)
	n.values = slices.Delete(n.values, idx, idx+1)
	return true, nil
}

// ─── Range ────────────────────────────────────────────────────────────────────

func (bt *Tree) Range(start, end int32) (index.Iterator, error) {
	return &Iterator{curr: bt.findLeaf(start), start: start, end: end}, nil
}

type Iterator struct {
	curr       *node
	i          int
	start, end int32
	key        int32
	val        int32
}

func (it *Iterator) Next() bool {
	for it.curr != nil {
		for it.i < len(it.curr.keys) {
			k := it.curr.keys[it.i]
			if k > it.end {
				return false
			}
			if k >= it.start {
				it.key = k
				it.val = it.curr.values[it.i]
				it.i++
				return true
			}
			it.i++
		}
		it.curr = it.curr.next
		it.i = 0
	}
	return false
}

func (it *Iterator) Key() int32   { return it.key }
func (it *Iterator) Value() int32 { return it.val }
func (it *Iterator) Error() error { return nil }
func (it *Iterator) Close() error { return nil }

func (bt *Tree) Close() error { return nil }
