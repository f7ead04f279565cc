// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package emission

import "github.com/bredelings/argweaver/localtree"

// buildFullInner runs a complete postorder pruning pass over the
// existing tree (not yet augmented by the threaded leaf) for one
// site.
func (e *Engine) buildFullInner(site int) map[int]quartet {
	table := make(map[int]quartet, e.tree.NNodes())
	for _, id := range e.tree.Nodes() {
		n := e.tree.Node(id)
		if n.IsLeaf() {
			table[id] = e.leafBase(id, site)
			continue
		}
		left := propagate(e.mu, e.model.Floor(e.tree.GetDist(n.Child[0], e.model.Times)), table[n.Child[0]])
		right := propagate(e.mu, e.model.Floor(e.tree.GetDist(n.Child[1], e.model.Times)), table[n.Child[1]])
		table[id] = mulQuartet(left, right)
	}
	return table
}

// ensureBaseInner returns the cached full-tree inner table for site,
// building it on first use.
func (e *Engine) ensureBaseInner(site int) map[int]quartet {
	t, ok := e.baseInner[site]
	if !ok {
		t = e.buildFullInner(site)
		e.baseInner[site] = t
	}
	return t
}

func (e *Engine) externalSite(site int, s localtree.State) float64 {
	return e.combineExternal(e.ensureBaseInner(site), site, s)
}

// externalSiteSlow rebuilds the whole-tree inner table from scratch
// for every state, with no cross-state reuse.
func (e *Engine) externalSiteSlow(site int, s localtree.State) float64 {
	return e.combineExternal(e.buildFullInner(site), site, s)
}

// combineExternal attaches the threaded leaf onto base at state s and
// walks the affected path up to the root, recomputing only the
// ancestors of s.Node and reusing base's cached sibling values.
func (e *Engine) combineExternal(base map[int]quartet, site int, s localtree.State) float64 {
	times := e.model.Times
	attach := e.tree.Node(s.Node)

	tDown := e.model.Floor(times[s.Time] - times[attach.Age])
	tNewLeaf := e.model.Floor(times[s.Time] - times[e.newAge])
	newLeaf := leafQuartet(e.newSeq[site])

	val := mulQuartet(propagate(e.mu, tDown, base[s.Node]), propagate(e.mu, tNewLeaf, newLeaf))

	curID := s.Node
	curParent := attach.Parent
	curAge := s.Time
	for curParent != localtree.NoNode {
		parent := e.tree.Node(curParent)
		sib := e.tree.GetSibling(curID)

		upDist := e.model.Floor(times[parent.Age] - times[curAge])
		sibDist := e.model.Floor(e.tree.GetDist(sib, times))

		up := propagate(e.mu, upDist, val)
		sibVal := propagate(e.mu, sibDist, base[sib])
		val = mulQuartet(up, sibVal)

		curID = curParent
		curParent = parent.Parent
		curAge = parent.Age
	}
	return 0.25 * sumQuartet(val)
}
