package bptree

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/btree-query-bench/bpidx/dbms/index"
	"github.com/btree-query-bench/bpidx/dbms/pager"
)

var _ index.Index = (*Tree)(nil)

// maxBranch bounds the branching factor so that a full node of B-1 keys
// still encodes into one page.
const maxBranch = (pager.PageSize - 9) / 8

// Tree is a disk-based B+ tree. One tree lives per file: a header page
// recording the branching factor and root offset, followed by append-only
// node pages. The struct carries no node state — every operation reads the
// pages it needs and writes back the ones it changed.
type Tree struct {
	pg      *pager.Pager
	b       int32
	rootOff int32
}

// Create formats path as a new tree with branching factor b, overwriting
// any existing file. The new tree is a single empty root leaf.
func Create(path string, b int32) (*Tree, error) {
	if b < 3 || b > maxBranch {
		return nil, fmt.Errorf("bptree: branching factor %d out of range [3, %d]", b, maxBranch)
	}
	pg := pager.New(path)
	if err := pg.Format(b, pager.PageSize); err != nil {
		return nil, err
	}
	rootOff, err := pg.Allocate(newLeaf().encode())
	if err != nil {
		return nil, err
	}
	return &Tree{pg: pg, b: b, rootOff: rootOff}, nil
}

// Open reads the header of an existing tree file.
func Open(path string) (*Tree, error) {
	pg := pager.New(path)
	b, root, err := pg.ReadHeader()
	if err != nil {
		return nil, err
	}
	return &Tree{pg: pg, b: b, rootOff: root}, nil
}

// Branching returns the branching factor recorded in the header.
func (t *Tree) Branching() int32 { return t.b }

func (t *Tree) Close() error { return nil }

func (t *Tree) read(off int32) (*Node, error) {
	pg, err := t.pg.ReadPage(off)
	if err != nil {
		return nil, err
	}
	return decode(pg), nil
}

func (t *Tree) write(off int32, n *Node) error {
	return t.pg.WritePage(off, n.encode())
}

// minKeys is the lower bound on keys per non-root node, ceil((B-1)/2).
func (t *Tree) minKeys() int {
	return int(t.b) / 2
}

// routeIdx applies the routing rule: the smallest i with key < keys[i],
// or len(keys) to take the rightmost child. Equal keys route right.
func routeIdx(keys []int32, key int32) int {
	return sort.Search(len(keys), func(i int) bool { return key < keys[i] })
}

// ─── Search ───────────────────────────────────────────────────────────────────

// descend walks from off to the leaf that would contain key. If trace is
// non-nil, each internal node's key list is emitted comma-separated on its
// own line. A child offset of -1 means a corrupt page; descent degrades by
// returning the current node in its place.
func (t *Tree) descend(off, key int32, trace io.Writer) (*Node, int32, error) {
	n, err := t.read(off)
	if err != nil {
		return nil, pager.Invalid, err
	}
	if n.Leaf {
		return n, off, nil
	}
	if trace != nil {
		parts := make([]string, len(n.Keys))
		for i, k := range n.Keys {
			parts[i] = strconv.Itoa(int(k))
		}
		fmt.Fprintln(trace, strings.Join(parts, ","))
	}
	child := n.Children[routeIdx(n.Keys, key)]
	if child == pager.Invalid {
		return n, off, nil
	}
	return t.descend(child, key, trace)
}

// Search returns the value stored for key.
func (t *Tree) Search(key int32) (int32, bool, error) {
	n, _, err := t.descend(t.rootOff, key, nil)
	if err != nil {
		return 0, false, err
	}
	if i, ok := slices.BinarySearch(n.Keys, key); ok && i < len(n.Values) {
		return n.Values[i], true, nil
	}
	return 0, false, nil
}

// Lookup is the traced point lookup behind the -s command: the key list of
// every internal node on the descent path, then the value or NOT FOUND.
func (t *Tree) Lookup(w io.Writer, key int32) error {
	n, _, err := t.descend(t.rootOff, key, w)
	if err != nil {
		return err
	}
	if i, ok := slices.BinarySearch(n.Keys, key); ok && i < len(n.Values) {
		fmt.Fprintln(w, n.Values[i])
	} else {
		fmt.Fprintln(w, "NOT FOUND")
	}
	return nil
}

// ─── Insert ───────────────────────────────────────────────────────────────────

// split carries a promoted key and the offset of the new right sibling up
// the insertion path.
type split struct {
	key   int32
	right int32
}

// Insert adds a key/value pair. Inserting a key that is already present is
// a no-op: the stored value is not overwritten.
func (t *Tree) Insert(key, value int32) error {
	res, err := t.insertRec(t.rootOff, key, value)
	if err != nil || res == nil {
		return err
	}

	// Split propagated past the old root: grow a new root above it.
	root := newInternal()
	root.Keys = []int32{res.key}
	root.Children = []int32{t.rootOff, res.right}
	off, err := t.pg.Allocate(root.encode())
	if err != nil {
		return err
	}
	t.rootOff = off
	return t.pg.SetRoot(off)
}

// insertRec descends to the target leaf and inserts. A non-nil split means
// the node at off was split and the caller must add the promoted key.
func (t *Tree) insertRec(off, key, value int32) (*split, error) {
	n, err := t.read(off)
	if err != nil {
		return nil, err
	}

	if n.Leaf {
		idx, found := slices.BinarySearch(n.Keys, key)
		if found {
			return nil, nil // duplicate
		}
		n.Keys = slices.Insert(n.Keys, idx, key)
		n.Values = slices.Insert(n.Values, idx, value)
		if len(n.Keys) <= int(t.b)-1 {
			return nil, t.write(off, n)
		}
		return t.splitLeaf(n, off)
	}

	childOff := n.Children[routeIdx(n.Keys, key)]
	res, err := t.insertRec(childOff, key, value)
	if err != nil || res == nil {
		return nil, err
	}

	idx, _ := slices.BinarySearch(n.Keys, res.key)
	n.Keys = slices.Insert(n.Keys, idx, res.key)
	n.Children = slices.Insert(n.Children, idx+1, res.right)
	if len(n.Keys) <= int(t.b)-1 {
		return nil, t.write(off, n)
	}
	return t.splitInternal(n, off)
}

// splitLeaf moves the upper half of an over-full leaf into a new right
// sibling and promotes the new sibling's first key (copy-up).
func (t *Tree) splitLeaf(n *Node, off int32) (*split, error) {
	mid := len(n.Keys) / 2

	right := newLeaf()
	right.Keys = append(right.Keys, n.Keys[mid:]...)
	right.Values = append(right.Values, n.Values[mid:]...)
	right.Right = n.Right

	n.Keys = n.Keys[:mid]
	n.Values = n.Values[:mid]

	rightOff, err := t.pg.Allocate(right.encode())
	if err != nil {
		return nil, err
	}
	n.Right = rightOff
	if err := t.write(off, n); err != nil {
		return nil, err
	}
	return &split{key: right.Keys[0], right: rightOff}, nil
}

// splitInternal promotes the middle key of an over-full internal node
// (push-up: it appears in neither half afterwards).
func (t *Tree) splitInternal(n *Node, off int32) (*split, error) {
	mid := len(n.Keys) / 2
	keyUp := n.Keys[mid]

	right := newInternal()
	right.Keys = append(right.Keys, n.Keys[mid+1:]...)
	right.Children = append(right.Children, n.Children[mid+1:]...)

	n.Keys = n.Keys[:mid]
	n.Children = n.Children[:mid+1]

	rightOff, err := t.pg.Allocate(right.encode())
	if err != nil {
		return nil, err
	}
	if err := t.write(off, n); err != nil {
		return nil, err
	}
	return &split{key: keyUp, right: rightOff}, nil
}

// ─── Delete ───────────────────────────────────────────────────────────────────

// Delete removes key and rebalances. Returns false if the key was absent,
// in which case nothing was written.
func (t *Tree) Delete(key int32) (bool, error) {
	deleted, err := t.deleteRec(t.rootOff, key, pager.Invalid, -1)
	if err != nil {
		return false, err
	}

	// Shrink the root when a merge emptied it: promote its only child.
	root, err := t.read(t.rootOff)
	if err != nil {
		return deleted, err
	}
	if !root.Leaf && len(root.Keys) == 0 && len(root.Children) > 0 {
		t.rootOff = root.Children[0]
		if err := t.pg.SetRoot(t.rootOff); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// deleteRec removes key from the subtree at off. parentOff and childIdx
// locate off within its parent (pager.Invalid at the root); an under-filled
// leaf rebalances against that parent directly, while an under-filled
// internal node is repaired one level up, after the recursive call returns.
func (t *Tree) deleteRec(off, key, parentOff int32, childIdx int) (bool, error) {
	n, err := t.read(off)
	if err != nil {
		return false, err
	}

	if n.Leaf {
		idx, found := slices.BinarySearch(n.Keys, key)
		if !found {
			return false, nil
		}
		n.Keys = slices.Delete(n.Keys, idx, idx+1)
		n.Values = slices.Delete(n.Values, idx, idx+1)
		if err := t.write(off, n); err != nil {
			return false, err
		}

		if parentOff != pager.Invalid && len(n.Keys) < t.minKeys() {
			parent, err := t.read(parentOff)
			if err != nil {
				return true, err
			}
			if err := t.rebalanceLeaf(n, off, parent, parentOff, childIdx); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	i := routeIdx(n.Keys, key)
	childOff := n.Children[i]
	deleted, err := t.deleteRec(childOff, key, off, i)
	if err != nil || !deleted {
		return deleted, err
	}

	// Leaf-level rebalancing may have under-filled the child; internal
	// children are repaired here, against this node. n is still current
	// whenever it is used: a leaf child's rebalance may rewrite this page,
	// but then n is not used again, and below an internal child the
	// recursion writes only that child's subtree and the child itself.
	child, err := t.read(childOff)
	if err != nil {
		return true, err
	}
	if !child.Leaf && len(child.Keys) < t.minKeys() {
		if err := t.rebalanceInternal(child, childOff, n, off, i); err != nil {
			return true, err
		}
	}
	return true, nil
}

// rebalanceLeaf restores the minimum-keys rule for the leaf n at position
// childIdx under parent. Borrowing from the left sibling is tried first,
// then the right; merging prefers the left sibling except at the leftmost
// position, where only a right-sibling merge is attempted.
func (t *Tree) rebalanceLeaf(n *Node, off int32, parent *Node, parentOff int32, childIdx int) error {
	min := t.minKeys()

	if childIdx > 0 {
		leftOff := parent.Children[childIdx-1]
		if leftOff != pager.Invalid {
			left, err := t.read(leftOff)
			if err != nil {
				return err
			}
			if len(left.Keys) > min {
				// Borrow left: sibling's last pair becomes n's first,
				// and the separator follows n's new first key.
				last := len(left.Keys) - 1
				n.Keys = slices.Insert(n.Keys, 0, left.Keys[last])
				n.Values = slices.Insert(n.Values, 0, left.Values[last])
				left.Keys = left.Keys[:last]
				left.Values = left.Values[:last]
				parent.Keys[childIdx-1] = n.Keys[0]
				if err := t.write(off, n); err != nil {
					return err
				}
				if err := t.write(leftOff, left); err != nil {
					return err
				}
				return t.write(parentOff, parent)
			}
		}
	}

	if childIdx < len(parent.Children)-1 {
		rightOff := parent.Children[childIdx+1]
		if rightOff != pager.Invalid {
			right, err := t.read(rightOff)
			if err != nil {
				return err
			}
			if len(right.Keys) > min {
				// Borrow right: sibling's first pair appended to n,
				// separator becomes the sibling's new first key.
				n.Keys = append(n.Keys, right.Keys[0])
				n.Values = append(n.Values, right.Values[0])
				right.Keys = slices.Delete(right.Keys, 0, 1)
				right.Values = slices.Delete(right.Values, 0, 1)
				parent.Keys[childIdx] = right.Keys[0]
				if err := t.write(off, n); err != nil {
					return err
				}
				if err := t.write(rightOff, right); err != nil {
					return err
				}
				return t.write(parentOff, parent)
			}
		}
	}

	if childIdx > 0 {
		leftOff := parent.Children[childIdx-1]
		if leftOff == pager.Invalid {
			return nil
		}
		left, err := t.read(leftOff)
		if err != nil {
			return err
		}
		return t.mergeLeaves(left, leftOff, n, parent, parentOff, childIdx-1)
	}
	if childIdx+1 < len(parent.Children) {
		rightOff := parent.Children[childIdx+1]
		if rightOff == pager.Invalid {
			return nil
		}
		right, err := t.read(rightOff)
		if err != nil {
			return err
		}
		return t.mergeLeaves(n, off, right, parent, parentOff, childIdx)
	}
	return nil
}

// rebalanceInternal is the internal-node counterpart: separators rotate
// through the parent on borrow and are pulled down on merge.
func (t *Tree) rebalanceInternal(n *Node, off int32, parent *Node, parentOff int32, childIdx int) error {
	min := t.minKeys()

	if childIdx > 0 {
		leftOff := parent.Children[childIdx-1]
		if leftOff != pager.Invalid {
			left, err := t.read(leftOff)
			if err != nil {
				return err
			}
			if len(left.Keys) > min {
				last := len(left.Keys) - 1
				n.Keys = slices.Insert(n.Keys, 0, parent.Keys[childIdx-1])
				n.Children = slices.Insert(n.Children, 0, left.Children[len(left.Children)-1])
				left.Children = left.Children[:len(left.Children)-1]
				parent.Keys[childIdx-1] = left.Keys[last]
				left.Keys = left.Keys[:last]
				if err := t.write(off, n); err != nil {
					return err
				}
				if err := t.write(leftOff, left); err != nil {
					return err
				}
				return t.write(parentOff, parent)
			}
		}
	}

	if childIdx < len(parent.Children)-1 {
		rightOff := parent.Children[childIdx+1]
		if rightOff != pager.Invalid {
			right, err := t.read(rightOff)
			if err != nil {
				return err
			}
			if len(right.Keys) > min {
				n.Keys = append(n.Keys, parent.Keys[childIdx])
				n.Children = append(n.Children, right.Children[0])
				right.Children = slices.Delete(right.Children, 0, 1)
				parent.Keys[childIdx] = right.Keys[0]
				right.Keys = slices.Delete(right.Keys, 0, 1)
				if err := t.write(off, n); err != nil {
					return err
				}
				if err := t.write(rightOff, right); err != nil {
					return err
				}
				return t.write(parentOff, parent)
			}
		}
	}

	if childIdx > 0 {
		leftOff := parent.Children[childIdx-1]
		if leftOff == pager.Invalid {
			return nil
		}
		left, err := t.read(leftOff)
		if err != nil {
			return err
		}
		return t.mergeInternal(left, leftOff, n, parent, parentOff, childIdx-1)
	}
	if childIdx+1 < len(parent.Children) {
		rightOff := parent.Children[childIdx+1]
		if rightOff == pager.Invalid {
			return nil
		}
		right, err := t.read(rightOff)
		if err != nil {
			return err
		}
		return t.mergeInternal(n, off, right, parent, parentOff, childIdx)
	}
	return nil
}

// mergeLeaves concatenates right into left, relinks the leaf chain and
// drops the separator at sepIdx. The right page becomes unreachable.
func (t *Tree) mergeLeaves(left *Node, leftOff int32, right *Node, parent *Node, parentOff int32, sepIdx int) error {
	left.Keys = append(left.Keys, right.Keys...)
	left.Values = append(left.Values, right.Values...)
	left.Right = right.Right

	parent.Keys = slices.Delete(parent.Keys, sepIdx, sepIdx+1)
	parent.Children = slices.Delete(parent.Children, sepIdx+1, sepIdx+2)

	if err := t.write(leftOff, left); err != nil {
		return err
	}
	return t.write(parentOff, parent)
}

// mergeInternal pulls the separator down between the two halves, since
// internal keys are routing information rather than stored data.
func (t *Tree) mergeInternal(left *Node, leftOff int32, right *Node, parent *Node, parentOff int32, sepIdx int) error {
	left.Keys = append(left.Keys, parent.Keys[sepIdx])
	left.Keys = append(left.Keys, right.Keys...)
	left.Children = append(left.Children, right.Children...)

	parent.Keys = slices.Delete(parent.Keys, sepIdx, sepIdx+1)
	parent.Children = slices.Delete(parent.Children, sepIdx+1, sepIdx+2)

	if err := t.write(leftOff, left); err != nil {
		return err
	}
	return t.write(parentOff, parent)
}
