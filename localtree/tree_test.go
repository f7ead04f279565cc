// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package localtree_test

import (
	"testing"

	"github.com/bredelings/argweaver/coalmodel"
	"github.com/bredelings/argweaver/localtree"
	"github.com/js-arias/timetree/simulate"
)

func testModel() *coalmodel.Model {
	return coalmodel.New(20, 2_000_000, 10_000, 1.6e-8, 2.5e-8, 10)
}

func newTestTree(t testing.TB, leaves int) *localtree.Tree {
	t.Helper()
	src := simulate.Coalescent("test", 10_000, 1_000_000, leaves)
	return localtree.New(src, testModel())
}

func TestPostorderIsBinary(t *testing.T) {
	lt := newTestTree(t, 8)

	seen := make(map[int]bool)
	order := lt.GetPostorder(nil)
	for _, id := range order {
		if seen[id] {
			t.Fatalf("node %d repeated in postorder", id)
		}
		seen[id] = true
		n := lt.Node(id)
		if n.IsLeaf() {
			continue
		}
		if n.Child[0] == localtree.NoNode || n.Child[1] == localtree.NoNode {
			t.Errorf("internal node %d missing a child", id)
		}
		if !seen[n.Child[0]] || !seen[n.Child[1]] {
			t.Errorf("node %d appears before its children in postorder", id)
		}
	}
	if order[len(order)-1] != lt.Root() {
		t.Errorf("last postorder node is %d, want root %d", order[len(order)-1], lt.Root())
	}
}

func TestGetSibling(t *testing.T) {
	lt := newTestTree(t, 8)

	for _, id := range lt.GetPostorder(nil) {
		if lt.IsRoot(id) {
			if lt.GetSibling(id) != localtree.NoNode {
				t.Errorf("root %d should have no sibling", id)
			}
			continue
		}
		sib := lt.GetSibling(id)
		if sib == localtree.NoNode {
			t.Errorf("node %d should have a sibling", id)
			continue
		}
		if lt.GetSibling(sib) != id {
			t.Errorf("sibling relation is not symmetric for %d/%d", id, sib)
		}
	}
}

func TestGetCoalStatesContiguous(t *testing.T) {
	lt := newTestTree(t, 6)
	m := testModel()

	states := localtree.GetCoalStates(lt, m.NTimes, 0, false)
	if len(states) == 0 {
		t.Fatal("expected at least one state")
	}

	seen := make(map[int]bool)
	last := -1
	for i, s := range states {
		if last != s.Node {
			if seen[s.Node] {
				t.Fatalf("states for node %d are not contiguous (state %d)", s.Node, i)
			}
			seen[s.Node] = true
			last = s.Node
		}
		n := lt.Node(s.Node)
		if s.Time < n.Age {
			t.Errorf("state (%d,%d): time below node age %d", s.Node, s.Time, n.Age)
		}
	}

	idx := localtree.Indexes(states)
	for node, i := range idx {
		if states[i].Node != node {
			t.Errorf("Indexes[%d] = %d points at node %d", node, i, states[i].Node)
		}
	}
}

func TestApplySPRInferSPRRoundTrip(t *testing.T) {
	lt := newTestTree(t, 8)

	var leaves []int
	for _, id := range lt.GetPostorder(nil) {
		if lt.IsLeaf(id) {
			leaves = append(leaves, id)
		}
	}
	r := leaves[0]
	p := lt.Node(r).Parent
	c := -1
	for _, id := range leaves[1:] {
		if id == lt.GetSibling(r) || id == lt.GetSibling(p) {
			continue
		}
		c = id
		break
	}
	if c < 0 {
		t.Fatal("no regraft target leaf")
	}
	spr := localtree.SPR{
		RecombNode: r,
		RecombTime: lt.Node(r).Age,
		CoalNode:   c,
		CoalTime:   lt.Node(lt.Node(c).Parent).Age,
	}

	lt2 := lt.ApplySPR(spr)
	if lt2.NNodes() != lt.NNodes() {
		t.Fatalf("NNodes() = %d, want %d", lt2.NNodes(), lt.NNodes())
	}
	order := lt2.GetPostorder(nil)
	if len(order) != lt2.NNodes() {
		t.Fatalf("postorder visits %d nodes, want %d", len(order), lt2.NNodes())
	}
	if order[len(order)-1] != lt2.Root() {
		t.Errorf("last postorder node is %d, want root %d", order[len(order)-1], lt2.Root())
	}
	pn := lt2.Node(p)
	if pn.Age != spr.CoalTime {
		t.Errorf("regrafted node age = %d, want %d", pn.Age, spr.CoalTime)
	}
	if lt2.Node(c).Parent != p || lt2.Node(r).Parent != p {
		t.Errorf("regrafted node %d should be the parent of both %d and %d", p, c, r)
	}

	got := localtree.InferSPR(lt, lt2)
	if got == nil {
		t.Fatal("InferSPR: no operation recovered")
	}
	if *got != spr {
		t.Errorf("InferSPR: got %+v, want %+v", *got, spr)
	}
}

func TestInferSPRIdenticalTreesIsNil(t *testing.T) {
	lt := newTestTree(t, 6)
	if got := localtree.InferSPR(lt, lt); got != nil {
		t.Errorf("InferSPR on identical trees: got %+v, want nil", *got)
	}
}

func TestTreeLenPositive(t *testing.T) {
	lt := newTestTree(t, 5)
	m := testModel()
	if l := lt.TreeLen(m); l <= 0 {
		t.Errorf("TreeLen: got %v, want > 0", l)
	}
}
