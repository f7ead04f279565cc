// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package thread_test

import (
	"testing"

	"github.com/bredelings/argweaver/argio"
	"github.com/bredelings/argweaver/coalmodel"
	"github.com/bredelings/argweaver/localtree"
	"github.com/bredelings/argweaver/seqset"
	"github.com/bredelings/argweaver/thread"
	"github.com/js-arias/timetree/simulate"
	"golang.org/x/exp/rand"
)

func testModel() *coalmodel.Model {
	return coalmodel.New(10, 2_000_000, 10_000, 1.6e-8, 2.5e-8, 10)
}

func testTree(t testing.TB, leaves int) *localtree.Tree {
	t.Helper()
	src := simulate.Coalescent("test", 10_000, 1_000_000, leaves)
	return localtree.New(src, testModel())
}

func testSeqs(t testing.TB, lt *localtree.Tree, seqLen int) *seqset.Sequences {
	t.Helper()
	bases := []byte{'A', 'C', 'G', 'T'}
	s := seqset.New()
	i := 0
	for _, id := range lt.Nodes() {
		if !lt.IsLeaf(id) {
			continue
		}
		seq := make([]byte, seqLen)
		for j := range seq {
			seq[j] = bases[(i+j)%len(bases)]
		}
		if err := s.Add(lt.Taxon(id), seq); err != nil {
			t.Fatalf("unable to add sequence: %v", err)
		}
		i++
	}
	return s
}

func TestSampleArgThreadGraftsLeaf(t *testing.T) {
	lt := testTree(t, 5)
	seqLen := 16
	seqs := testSeqs(t, lt, seqLen)
	newSeq := make([]byte, seqLen)
	if err := seqs.Add("new-taxon", newSeq); err != nil {
		t.Fatalf("unable to add new sequence: %v", err)
	}

	bb := []argio.BackboneBlock{
		{Start: 0, Length: seqLen, Tree: lt},
	}
	rng := rand.New(rand.NewSource(1))

	res, err := thread.SampleArgThread(testModel(), seqs, bb, "new-taxon", newSeq, 0, rng)
	if err != nil {
		t.Fatalf("SampleArgThread: %v", err)
	}
	if len(res.Path) != seqLen {
		t.Fatalf("path length = %d, want %d", len(res.Path), seqLen)
	}
	if len(res.Backbone) == 0 {
		t.Fatal("expected a nonempty backbone")
	}

	var total int
	for _, seg := range res.Backbone {
		total += seg.Length
		found := false
		for _, id := range seg.Tree.Nodes() {
			if seg.Tree.IsLeaf(id) && seg.Tree.Taxon(id) == "new-taxon" {
				found = true
			}
		}
		if !found {
			t.Errorf("segment starting at %d: missing grafted leaf", seg.Start)
		}
	}
	if total != seqLen {
		t.Errorf("backbone covers %d sites, want %d", total, seqLen)
	}
}

// sprBackbone builds a two-interval backbone: the second interval's
// tree is the first's with one leaf pruned and regrafted onto another
// leaf's branch, so the block boundary carries a real switch operator.
func sprBackbone(t testing.TB, lt *localtree.Tree, seqLen int) []argio.BackboneBlock {
	t.Helper()
	var leaves []int
	for _, id := range lt.Nodes() {
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
	half := seqLen / 2
	return []argio.BackboneBlock{
		{Start: 0, Length: half, Tree: lt},
		{Start: half, Length: seqLen - half, Tree: lt.ApplySPR(spr), SPR: &spr},
	}
}

func TestSampleArgThreadAcrossRecombination(t *testing.T) {
	lt := testTree(t, 6)
	seqLen := 20
	seqs := testSeqs(t, lt, seqLen)
	newSeq := make([]byte, seqLen)
	if err := seqs.Add("new-taxon", newSeq); err != nil {
		t.Fatalf("unable to add new sequence: %v", err)
	}

	bb := sprBackbone(t, lt, seqLen)
	rng := rand.New(rand.NewSource(1))

	res, err := thread.SampleArgThread(testModel(), seqs, bb, "new-taxon", newSeq, 0, rng)
	if err != nil {
		t.Fatalf("SampleArgThread: %v", err)
	}
	if len(res.Path) != seqLen {
		t.Fatalf("path length = %d, want %d", len(res.Path), seqLen)
	}

	var total int
	for _, seg := range res.Backbone {
		total += seg.Length
		found := false
		for _, id := range seg.Tree.Nodes() {
			if seg.Tree.IsLeaf(id) && seg.Tree.Taxon(id) == "new-taxon" {
				found = true
			}
		}
		if !found {
			t.Errorf("segment starting at %d: missing grafted leaf", seg.Start)
		}
	}
	if total != seqLen {
		t.Errorf("backbone covers %d sites, want %d", total, seqLen)
	}
}

func TestSampleArgThreadInternalStaysAboveMinAge(t *testing.T) {
	m := testModel()
	lt := testTree(t, 6)
	seqLen := 12
	seqs := testSeqs(t, lt, seqLen)

	minAge := lt.Node(lt.Node(lt.Root()).Child[0]).Age
	bb := []argio.BackboneBlock{
		{Start: 0, Length: seqLen, Tree: lt},
	}
	rng := rand.New(rand.NewSource(1))

	res, err := thread.SampleArgThreadInternal(m, seqs, bb, minAge, rng)
	if err != nil {
		t.Fatalf("SampleArgThreadInternal: %v", err)
	}
	if res.Backbone != nil {
		t.Error("internal threading should not splice a new leaf")
	}
	if len(res.Path) != seqLen {
		t.Fatalf("path length = %d, want %d", len(res.Path), seqLen)
	}

	states := localtree.GetCoalStates(lt, m.NTimes, minAge, true)
	if len(states) == 0 {
		t.Fatal("expected a nonempty internal state space")
	}
	for i, sIdx := range res.Path {
		if sIdx < 0 || sIdx >= len(states) {
			t.Fatalf("site %d: state %d out of bounds [0,%d)", i, sIdx, len(states))
		}
		s := states[sIdx]
		if s.Time < minAge {
			t.Errorf("site %d: state (%d,%d) below minimum age %d", i, s.Node, s.Time, minAge)
		}
		if s.Time < lt.Node(s.Node).Age {
			t.Errorf("site %d: state (%d,%d) below node age %d", i, s.Node, s.Time, lt.Node(s.Node).Age)
		}
	}
}

func TestMaxArgThreadInternalIsDeterministic(t *testing.T) {
	m := testModel()
	lt := testTree(t, 6)
	seqLen := 10
	seqs := testSeqs(t, lt, seqLen)

	minAge := lt.Node(lt.Node(lt.Root()).Child[0]).Age
	bb := []argio.BackboneBlock{
		{Start: 0, Length: seqLen, Tree: lt},
	}

	res1, err := thread.MaxArgThreadInternal(m, seqs, bb, minAge)
	if err != nil {
		t.Fatalf("MaxArgThreadInternal: %v", err)
	}
	res2, err := thread.MaxArgThreadInternal(m, seqs, bb, minAge)
	if err != nil {
		t.Fatalf("MaxArgThreadInternal: %v", err)
	}
	if res1.Backbone != nil {
		t.Error("internal threading should not splice a new leaf")
	}
	for i := range res1.Path {
		if res1.Path[i] != res2.Path[i] {
			t.Errorf("site %d: %d != %d across repeated runs", i, res1.Path[i], res2.Path[i])
		}
	}
}

func TestMaxArgThreadIsDeterministic(t *testing.T) {
	lt := testTree(t, 5)
	seqLen := 12
	seqs := testSeqs(t, lt, seqLen)
	newSeq := make([]byte, seqLen)
	if err := seqs.Add("new-taxon", newSeq); err != nil {
		t.Fatalf("unable to add new sequence: %v", err)
	}

	bb := []argio.BackboneBlock{
		{Start: 0, Length: seqLen, Tree: lt},
	}

	res1, err := thread.MaxArgThread(testModel(), seqs, bb, "new-taxon", newSeq, 0)
	if err != nil {
		t.Fatalf("MaxArgThread: %v", err)
	}
	res2, err := thread.MaxArgThread(testModel(), seqs, bb, "new-taxon", newSeq, 0)
	if err != nil {
		t.Fatalf("MaxArgThread: %v", err)
	}
	for i := range res1.Path {
		if res1.Path[i] != res2.Path[i] {
			t.Errorf("site %d: %d != %d across repeated runs", i, res1.Path[i], res2.Path[i])
		}
	}
}

func TestResampleArgThreadRoundTrips(t *testing.T) {
	lt := testTree(t, 5)
	seqLen := 12
	seqs := testSeqs(t, lt, seqLen)
	newSeq := make([]byte, seqLen)
	if err := seqs.Add("new-taxon", newSeq); err != nil {
		t.Fatalf("unable to add new sequence: %v", err)
	}

	bb := []argio.BackboneBlock{
		{Start: 0, Length: seqLen, Tree: lt},
	}
	rng := rand.New(rand.NewSource(1))

	res, err := thread.SampleArgThread(testModel(), seqs, bb, "new-taxon", newSeq, 0, rng)
	if err != nil {
		t.Fatalf("SampleArgThread: %v", err)
	}

	res2, err := thread.ResampleArgThread(testModel(), seqs, res.Backbone, "new-taxon", rng)
	if err != nil {
		t.Fatalf("ResampleArgThread: %v", err)
	}
	if len(res2.Backbone) == 0 {
		t.Fatal("expected a nonempty backbone after resampling")
	}
}

func TestCondSampleArgThreadHonorsStartState(t *testing.T) {
	lt := testTree(t, 5)
	seqLen := 10
	seqs := testSeqs(t, lt, seqLen)
	newSeq := make([]byte, seqLen)
	if err := seqs.Add("new-taxon", newSeq); err != nil {
		t.Fatalf("unable to add new sequence: %v", err)
	}

	m := testModel()
	bb := []argio.BackboneBlock{
		{Start: 0, Length: seqLen, Tree: lt},
	}
	states := localtree.GetCoalStates(lt, m.NTimes, 0, false)
	start := &states[0]
	rng := rand.New(rand.NewSource(1))

	res, err := thread.CondSampleArgThread(m, seqs, bb, "new-taxon", newSeq, 0, start, nil, rng)
	if err != nil {
		t.Fatalf("CondSampleArgThread: %v", err)
	}
	if len(res.Path) != seqLen {
		t.Fatalf("path length = %d, want %d", len(res.Path), seqLen)
	}
	if res.Path[0] != 0 {
		t.Errorf("first state = %d, want pinned 0", res.Path[0])
	}
}
