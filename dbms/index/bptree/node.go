// Package bptree implements a disk-based B+ tree over fixed-size pages.
//
// Node page layout (4096 bytes, zero-padded, all integers int32 LE):
//
//	[0]      tag — 1 = leaf, 0 = internal
//	[1..4]   m — number of keys
//	[5..]    m keys, ascending
//	leaf:     m values, then right-sibling offset (-1 = none)
//	internal: m+1 child offsets (-1 = missing), then right-sibling offset
//
// Internal nodes store no values — only separator keys and child offsets.
// Leaf nodes are linked via the right-sibling offset for range scans.
// The engine holds no tree state in memory beyond the root offset; every
// node access decodes one page, and every mutation re-encodes it.
package bptree

import (
	"encoding/binary"

	"github.com/btree-query-bench/bpidx/dbms/pager"
)

const (
	tagInternal = byte(0)
	tagLeaf     = byte(1)
)

// Node is the decoded form of one page.
type Node struct {
	Leaf     bool
	Keys     []int32
	Values   []int32 // leaves only, parallel to Keys
	Children []int32 // internal only, len = len(Keys)+1
	Right    int32   // next leaf in key order, pager.Invalid if none
}

func newLeaf() *Node {
	return &Node{Leaf: true, Right: pager.Invalid}
}

func newInternal() *Node {
	return &Node{Right: pager.Invalid}
}

// encode serializes the node into a fresh zero-padded page. Key-count
// invariants are deliberately not checked here: split and merge pass
// transiently over- and under-filled nodes through the codec.
func (n *Node) encode() *pager.Page {
	pg := new(pager.Page)
	if n.Leaf {
		pg[0] = tagLeaf
	} else {
		pg[0] = tagInternal
	}
	off := 1
	putInt32(pg, &off, int32(len(n.Keys)))
	for _, k := range n.Keys {
		putInt32(pg, &off, k)
	}
	if n.Leaf {
		for _, v := range n.Values {
			putInt32(pg, &off, v)
		}
	} else {
		for _, c := range n.Children {
			putInt32(pg, &off, c)
		}
	}
	putInt32(pg, &off, n.Right)
	return pg
}

// decode restores the tagged variant and its arrays from a page.
func decode(pg *pager.Page) *Node {
	n := &Node{Leaf: pg[0] == tagLeaf}
	off := 1
	m := int(getInt32(pg, &off))
	n.Keys = make([]int32, m)
	for i := range n.Keys {
		n.Keys[i] = getInt32(pg, &off)
	}
	if n.Leaf {
		n.Values = make([]int32, m)
		for i := range n.Values {
			n.Values[i] = getInt32(pg, &off)
		}
	} else {
		n.Children = make([]int32, m+1)
		for i := range n.Children {
			n.Children[i] = getInt32(pg, &off)
		}
	}
	n.Right = getInt32(pg, &off)
	return n
}

func putInt32(pg *pager.Page, off *int, v int32) {
	binary.LittleEndian.PutUint32(pg[*off:*off+4], uint32(v))
	*off += 4
}

func getInt32(pg *pager.Page, off *int) int32 {
	v := int32(binary.LittleEndian.Uint32(pg[*off : *off+4]))
	*off += 4
	return v
}
