// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package localtree implements the local-tree data model consumed by
// the threading core: a rooted binary tree whose node ages are
// discretized onto a time grid, together with the SPR operation that
// transforms one local tree into the next along a chromosome and the
// coalescent-state enumeration used to build the state space of a
// genomic block.
//
// A Tree wraps a *timetree.Tree: the timetree value supplies taxon
// naming and Newick/TSV I/O, and Tree adds the binary node array and
// discretized ages the engine needs.
package localtree

import (
	"fmt"

	"github.com/bredelings/argweaver/coalmodel"
	"github.com/js-arias/timetree"
)

// NoNode is the sentinel for a missing parent or child.
const NoNode = -1

// A Node is a node in a local tree.
type Node struct {
	ID     int
	Age    int // index into the model time grid
	Parent int
	Child  [2]int
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return n.Child[0] == NoNode && n.Child[1] == NoNode
}

// A Tree is a local tree for a single genomic block.
type Tree struct {
	t     *timetree.Tree
	nodes map[int]*Node
	root  int

	// synthetic names nodes that do not exist in the underlying
	// source tree: leaves grafted on by InsertLeaf.
	synthetic map[int]string
}

// New builds a Tree by copying the topology of the indicated
// time-calibrated source tree and discretizing its node ages onto the
// model's time grid.
//
// New panics if the source tree is not strictly binary (every
// internal node must have exactly two children), since the threading
// engine's branch-age metadata assumes a binary tree; a malformed
// source tree is a programmer error, not a runtime data condition.
func New(t *timetree.Tree, m *coalmodel.Model) *Tree {
	if m == nil {
		panic("localtree: undefined model")
	}

	nt := &Tree{
		t:     t,
		nodes: make(map[int]*Node, len(t.Nodes())),
		root:  t.Root(),
	}
	nt.copySource(t.Root(), NoNode, m)
	return nt
}

func (t *Tree) copySource(id, parent int, m *coalmodel.Model) {
	children := t.t.Children(id)
	if len(children) != 0 && len(children) != 2 {
		panic(fmt.Sprintf("localtree: node %d has %d children, want 0 or 2", id, len(children)))
	}

	n := &Node{
		ID:     id,
		Age:    m.TimeIndex(float64(t.t.Age(id))),
		Parent: parent,
		Child:  [2]int{NoNode, NoNode},
	}
	t.nodes[id] = n

	for i, c := range children {
		n.Child[i] = c
		t.copySource(c, id, m)
	}
}

// Root returns the ID of the root node.
func (t *Tree) Root() int {
	return t.root
}

// Node returns the node with the given ID, or nil if it is not part
// of the tree.
func (t *Tree) Node(id int) *Node {
	return t.nodes[id]
}

// NNodes returns the number of nodes in the tree.
func (t *Tree) NNodes() int {
	return len(t.nodes)
}

// Nodes returns the IDs of every node in the tree, in postorder.
func (t *Tree) Nodes() []int {
	return t.GetPostorder(nil)
}

// GetPostorder fills out (reusing its backing array when large
// enough) with the IDs of every node in postorder (children before
// parents) and returns it.
func (t *Tree) GetPostorder(out []int) []int {
	out = out[:0]
	var walk func(id int)
	walk = func(id int) {
		n := t.nodes[id]
		for _, c := range n.Child {
			if c != NoNode {
				walk(c)
			}
		}
		out = append(out, id)
	}
	walk(t.root)
	return out
}

// GetSibling returns the ID of the sibling of id, or NoNode if id is
// the root.
func (t *Tree) GetSibling(id int) int {
	n := t.nodes[id]
	if n.Parent == NoNode {
		return NoNode
	}
	p := t.nodes[n.Parent]
	if p.Child[0] == id {
		return p.Child[1]
	}
	return p.Child[0]
}

// IsLeaf reports whether id has no children.
func (t *Tree) IsLeaf(id int) bool {
	return t.nodes[id].IsLeaf()
}

// IsRoot reports whether id is the root.
func (t *Tree) IsRoot(id int) bool {
	return id == t.root
}

// GetDist returns the branch length, in the units of times, between
// id and its parent. At the root, it returns 0 (the root has no
// parent branch within the tree; the threading state space extends
// the root branch separately, see MaxAge).
func (t *Tree) GetDist(id int, times []float64) float64 {
	n := t.nodes[id]
	if n.Parent == NoNode {
		return 0
	}
	p := t.nodes[n.Parent]
	return times[p.Age] - times[n.Age]
}

// MaxAge returns the age-grid index used as the upper bound of the
// root branch's coalescent states: the top of the time grid.
func (t *Tree) MaxAge(ntimes int) int {
	return ntimes - 1
}

// Taxon returns the taxon name of a leaf node, or "" for an internal
// node.
func (t *Tree) Taxon(id int) string {
	if name, ok := t.synthetic[id]; ok {
		return name
	}
	if !t.IsLeaf(id) {
		return ""
	}
	return t.t.Taxon(id)
}

// InsertLeaf returns a new Tree, independent of t, in which a leaf
// named taxon (with age-grid index leafAge) is grafted onto branch
// attachNode at time-grid index attachTime: attachNode's parent edge
// is replaced by a new internal node at attachTime, with attachNode
// and the new leaf as its two children. The new internal node and
// leaf are given IDs above the existing range, since they have no
// counterpart in the underlying source tree.
//
// InsertLeaf is the mechanism the ARG splicer uses to produce each
// interval's updated local tree; it does not mutate the source
// *timetree.Tree, so a local tree stays immutable within its block.
func (t *Tree) InsertLeaf(attachNode, attachTime int, taxon string, leafAge int) *Tree {
	nt := &Tree{
		t:         t.t,
		nodes:     make(map[int]*Node, len(t.nodes)+2),
		root:      t.root,
		synthetic: make(map[int]string, len(t.synthetic)+1),
	}
	for id, n := range t.nodes {
		cp := *n
		nt.nodes[id] = &cp
	}
	for id, name := range t.synthetic {
		nt.synthetic[id] = name
	}

	next := nt.nextSyntheticID()
	newInternal, newLeaf := next, next+1

	old := nt.nodes[attachNode]
	parent := old.Parent

	nt.nodes[newLeaf] = &Node{ID: newLeaf, Age: leafAge, Parent: newInternal, Child: [2]int{NoNode, NoNode}}
	nt.nodes[newInternal] = &Node{ID: newInternal, Age: attachTime, Parent: parent, Child: [2]int{attachNode, newLeaf}}
	old.Parent = newInternal

	if parent == NoNode {
		nt.root = newInternal
	} else {
		p := nt.nodes[parent]
		if p.Child[0] == attachNode {
			p.Child[0] = newInternal
		} else {
			p.Child[1] = newInternal
		}
	}
	nt.synthetic[newLeaf] = taxon
	return nt
}

// ApplySPR returns a new Tree, independent of t, with the
// subtree-prune-regraft operation applied: the internal node above
// RecombNode is pruned (RecombNode's sibling is promoted to take its
// place) and regrafted onto CoalNode's branch at time-grid index
// CoalTime, with CoalNode and RecombNode as its two children. The
// pruned internal node keeps its ID, so node identities persist
// across the recombination breakpoint; the switch operator relies on
// that to map states between adjacent blocks.
//
// ApplySPR panics if RecombNode is the root or if CoalNode lies in
// the pruned subtree; both are programmer errors.
func (t *Tree) ApplySPR(spr SPR) *Tree {
	rn := t.nodes[spr.RecombNode]
	if rn == nil || rn.Parent == NoNode {
		panic("localtree: cannot prune above the root")
	}

	nt := &Tree{
		t:         t.t,
		nodes:     make(map[int]*Node, len(t.nodes)),
		root:      t.root,
		synthetic: make(map[int]string, len(t.synthetic)),
	}
	for id, n := range t.nodes {
		cp := *n
		nt.nodes[id] = &cp
	}
	for id, name := range t.synthetic {
		nt.synthetic[id] = name
	}

	r := spr.RecombNode
	p := nt.nodes[r].Parent
	pn := nt.nodes[p]
	sib := pn.Child[0]
	if sib == r {
		sib = pn.Child[1]
	}
	grand := pn.Parent
	nt.nodes[sib].Parent = grand
	if grand == NoNode {
		nt.root = sib
	} else {
		g := nt.nodes[grand]
		if g.Child[0] == p {
			g.Child[0] = sib
		} else {
			g.Child[1] = sib
		}
	}

	c := spr.CoalNode
	for cur := c; cur != NoNode; cur = nt.nodes[cur].Parent {
		if cur == r || cur == p {
			panic("localtree: coalescence point inside the pruned subtree")
		}
	}
	cp := nt.nodes[c].Parent
	pn.Age = spr.CoalTime
	pn.Parent = cp
	pn.Child = [2]int{c, r}
	nt.nodes[c].Parent = p
	if cp == NoNode {
		nt.root = p
	} else {
		g := nt.nodes[cp]
		if g.Child[0] == c {
			g.Child[0] = p
		} else {
			g.Child[1] = p
		}
	}
	return nt
}

// nextSyntheticID returns an ID not already in use by any node.
func (t *Tree) nextSyntheticID() int {
	max := -1
	for id := range t.nodes {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// RemoveLeafByName returns a new Tree, independent of t, with the
// named leaf and its parent edge removed: the leaf's sibling is
// promoted to take the removed parent's place, the inverse of
// InsertLeaf, used to detach a chromosome before resampling it. The
// second return value is false if no leaf with that name exists.
func (t *Tree) RemoveLeafByName(taxon string) (*Tree, bool) {
	leaf := NoNode
	for id := range t.nodes {
		if t.IsLeaf(id) && t.Taxon(id) == taxon {
			leaf = id
			break
		}
	}
	if leaf == NoNode {
		return nil, false
	}

	nt := &Tree{
		t:         t.t,
		nodes:     make(map[int]*Node, len(t.nodes)),
		root:      t.root,
		synthetic: make(map[int]string, len(t.synthetic)),
	}
	for id, n := range t.nodes {
		cp := *n
		nt.nodes[id] = &cp
	}
	for id, name := range t.synthetic {
		if id == leaf {
			continue
		}
		nt.synthetic[id] = name
	}

	parent := nt.nodes[leaf].Parent
	delete(nt.nodes, leaf)
	if parent == NoNode {
		// the sole leaf of a single-node tree: nothing left to
		// reconnect.
		return nt, true
	}

	p := nt.nodes[parent]
	sib := p.Child[0]
	if sib == leaf {
		sib = p.Child[1]
	}
	grand := p.Parent
	nt.nodes[sib].Parent = grand
	if grand == NoNode {
		nt.root = sib
	} else {
		g := nt.nodes[grand]
		if g.Child[0] == parent {
			g.Child[0] = sib
		} else {
			g.Child[1] = sib
		}
	}
	delete(nt.nodes, parent)
	return nt, true
}

// Name returns the name of the underlying source tree.
func (t *Tree) Name() string {
	return t.t.Name()
}

// TreeLen returns the sum of floored branch lengths of every node but
// the root, used by the emission engine's invariant-site shortcut.
func (t *Tree) TreeLen(m *coalmodel.Model) float64 {
	var sum float64
	for _, id := range t.Nodes() {
		if t.IsRoot(id) {
			continue
		}
		sum += m.Floor(t.GetDist(id, m.Times))
	}
	return sum
}
