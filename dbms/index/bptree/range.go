package bptree

import (
	"github.com/btree-query-bench/bpidx/dbms/index"
	"github.com/btree-query-bench/bpidx/dbms/pager"
)

// RangeIterator walks the leaf chain emitting pairs with lo <= key <= hi.
type RangeIterator struct {
	tree *Tree
	lo   int32
	hi   int32
	node *Node
	idx  int
	k, v int32
	err  error
	done bool
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (t *Tree) Range(start, end int32) (index.Iterator, error) {
	n, _, err := t.descend(t.rootOff, start, nil)
	if err != nil {
		return nil, err
	}
	return &RangeIterator{tree: t, lo: start, hi: end, node: n}, nil
}

func (it *RangeIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for it.node != nil {
		for it.idx < len(it.node.Keys) {
			k := it.node.Keys[it.idx]
			if k > it.hi {
				it.done = true
				return false
			}
			if k >= it.lo {
				it.k = k
				it.v = it.node.Values[it.idx]
				it.idx++
				return true
			}
			it.idx++
		}
		if it.node.Right == pager.Invalid {
			break
		}
		next, err := it.tree.read(it.node.Right)
		if err != nil {
			it.err = err
			return false
		}
		it.node = next
		it.idx = 0
	}
	it.done = true
	return false
}

func (it *RangeIterator) Key() int32   { return it.k }
func (it *RangeIterator) Value() int32 { return it.v }
func (it *RangeIterator) Error() error { return it.err }
func (it *RangeIterator) Close() error { return nil }
