// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package emission

import "github.com/bredelings/argweaver/localtree"

// postorderFrom returns the IDs of root and its descendants, children
// before parents.
func (e *Engine) postorderFrom(root int) []int {
	var order []int
	var walk func(id int)
	walk = func(id int) {
		n := e.tree.Node(id)
		for _, c := range n.Child {
			if c != localtree.NoNode {
				walk(c)
			}
		}
		order = append(order, id)
	}
	walk(root)
	return order
}

// buildSubInner runs a postorder pruning pass over the subtree alone,
// returning the partial-likelihood quartet at the subtree root.
func (e *Engine) buildSubInner(site int) quartet {
	table := make(map[int]quartet)
	for _, id := range e.postorderFrom(e.subtreeRoot()) {
		n := e.tree.Node(id)
		if n.IsLeaf() {
			table[id] = e.leafBase(id, site)
			continue
		}
		left := propagate(e.mu, e.model.Floor(e.tree.GetDist(n.Child[0], e.model.Times)), table[n.Child[0]])
		right := propagate(e.mu, e.model.Floor(e.tree.GetDist(n.Child[1], e.model.Times)), table[n.Child[1]])
		table[id] = mulQuartet(left, right)
	}
	return table[e.subtreeRoot()]
}

// buildMainInner runs a postorder pruning pass over the maintree
// alone, returning a quartet per maintree node.
func (e *Engine) buildMainInner(site int) map[int]quartet {
	table := make(map[int]quartet)
	for _, id := range e.postorderFrom(e.mainRoot()) {
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

// buildMainOuter runs a preorder pass over the maintree computing, for
// every node, the "from above" marginal aligned with the node's
// parent position: the value to propagate down the remaining portion
// of the node's branch when a candidate attachment falls partway
// along it. The maintree root's outer is the identity quartet (no
// tree above it).
func (e *Engine) buildMainOuter(site int, mainInner map[int]quartet) map[int]quartet {
	atParent := make(map[int]quartet)
	self := make(map[int]quartet)

	root := e.mainRoot()
	self[root] = quartet{1, 1, 1, 1}

	var walk func(id int)
	walk = func(id int) {
		n := e.tree.Node(id)
		for _, c := range n.Child {
			if c == localtree.NoNode {
				continue
			}
			sib := e.tree.GetSibling(c)
			sibDist := e.model.Floor(e.tree.GetDist(sib, e.model.Times))
			atParent[c] = mulQuartet(propagate(e.mu, sibDist, mainInner[sib]), self[id])

			cDist := e.model.Floor(e.tree.GetDist(c, e.model.Times))
			self[c] = propagate(e.mu, cDist, atParent[c])
			walk(c)
		}
	}
	walk(root)
	return atParent
}

func (e *Engine) internalSite(site int, s localtree.State) float64 {
	sub, ok := e.subInner[site]
	if !ok {
		sub = e.buildSubInner(site)
		e.subInner[site] = sub
	}
	main, ok := e.mainInner[site]
	if !ok {
		main = e.buildMainInner(site)
		e.mainInner[site] = main
	}
	outer, ok := e.mainOuter[site]
	if !ok {
		outer = e.buildMainOuter(site, main)
		e.mainOuter[site] = outer
	}
	return e.combineInternal(sub, main, outer, s)
}

// internalSiteSlow recomputes every cache from scratch for every
// state, with no cross-state reuse.
func (e *Engine) internalSiteSlow(site int, s localtree.State) float64 {
	sub := e.buildSubInner(site)
	main := e.buildMainInner(site)
	outer := e.buildMainOuter(site, main)
	return e.combineInternal(sub, main, outer, s)
}

func (e *Engine) combineInternal(sub quartet, main, outer map[int]quartet, s localtree.State) float64 {
	times := e.model.Times
	node := e.tree.Node(s.Node)
	subRootAge := e.tree.Node(e.subtreeRoot()).Age

	t1 := e.model.Floor(times[s.Time] - times[subRootAge])
	t2 := e.model.Floor(times[s.Time] - times[node.Age])

	val := mulQuartet(propagate(e.mu, t1, sub), propagate(e.mu, t2, main[s.Node]))

	if s.Node != e.mainRoot() {
		parent := e.tree.Node(node.Parent)
		t3 := e.model.Floor(times[parent.Age] - times[s.Time])
		val = mulQuartet(val, propagate(e.mu, t3, outer[s.Node]))
	}

	return 0.25 * sumQuartet(val)
}
