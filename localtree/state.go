// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package localtree

// A State is a coalescence state: the new lineage joins the tree on
// branch Node at time-grid index Time.
type State struct {
	Node int
	Time int
}

// An SPR records the subtree-prune-regraft operation that transforms
// the previous block's local tree into this one: the lineage above
// RecombNode is pruned at RecombTime and regrafted onto CoalNode at
// CoalTime.
type SPR struct {
	RecombNode int
	RecombTime int
	CoalNode   int
	CoalTime   int
}

// GetCoalStates enumerates the admissible coalescent states of a
// local tree: for every node (including the root, whose branch is
// treated as extending to the top of the time grid), every time-grid
// index in [age1, age2] with age1 = max(node age, minAge) and
// age2 = parent age (or the top of the grid at the root).
//
// States belonging to the same node are contiguous, in the order
// nodes are visited by GetPostorder; this is required by the
// transition operator's same-branch correction, which locates a
// node's run by a single starting index.
//
// minAge is 0 for external threading, and the age of the new
// lineage's own subtree root for internal threading.
func GetCoalStates(t *Tree, ntimes, minAge int, internal bool) []State {
	var states []State
	top := t.MaxAge(ntimes)

	var excluded map[int]bool
	if internal {
		// the global root is an artificial container for the
		// subtree root (child 0) and maintree root (child 1); a
		// regrafting subtree is not itself a valid attachment
		// target, so neither it nor the global root contribute
		// states.
		excluded = make(map[int]bool)
		excluded[t.Root()] = true
		markSubtree(t, t.Node(t.Root()).Child[0], excluded)
	}

	for _, id := range t.Nodes() {
		if excluded[id] {
			continue
		}

		n := t.Node(id)
		age1 := n.Age
		if age1 < minAge {
			age1 = minAge
		}
		age2 := top
		if n.Parent != NoNode {
			age2 = t.Node(n.Parent).Age
		}
		for ti := age1; ti <= age2; ti++ {
			states = append(states, State{Node: id, Time: ti})
		}
	}
	return states
}

// InferSPR derives the subtree-prune-regraft operation that
// transforms prev into curr, matching nodes by ID: it looks for a
// node whose parent changed and whose new parent itself moved (the
// regrafted internal node and its coalescence child travel together
// in an SPR, while every other parent assignment is untouched). It
// returns nil when the two trees have identical parent assignments,
// or when no unambiguous pair exists.
func InferSPR(prev, curr *Tree) *SPR {
	for _, id := range curr.Nodes() {
		pn := prev.Node(id)
		cn := curr.Node(id)
		if pn == nil || pn.Parent == cn.Parent {
			continue
		}
		p := cn.Parent
		if p == NoNode {
			continue
		}
		pp := prev.Node(p)
		cp := curr.Node(p)
		if pp == nil || cp == nil || pp.Parent == cp.Parent {
			continue
		}
		r := curr.GetSibling(id)
		rp := prev.Node(r)
		if rp == nil || rp.Parent != p {
			continue
		}
		return &SPR{
			RecombNode: r,
			RecombTime: rp.Age,
			CoalNode:   id,
			CoalTime:   cp.Age,
		}
	}
	return nil
}

// markSubtree marks id and every descendant of id as excluded.
func markSubtree(t *Tree, id int, excluded map[int]bool) {
	excluded[id] = true
	n := t.Node(id)
	for _, c := range n.Child {
		if c != NoNode {
			markSubtree(t, c, excluded)
		}
	}
}

// Indexes returns, for every node that appears in states, the index
// of the first state belonging to that node's contiguous run, the
// lookup the transition operator's same-branch correction starts
// from.
func Indexes(states []State) map[int]int {
	idx := make(map[int]int, len(states))
	for i, s := range states {
		if _, ok := idx[s.Node]; !ok {
			idx[s.Node] = i
		}
	}
	return idx
}

// Find returns the index of state (node, time) in states, or -1 if it
// is not present.
func Find(states []State, node, time int) int {
	for i, s := range states {
		if s.Node == node && s.Time == time {
			return i
		}
	}
	return -1
}
