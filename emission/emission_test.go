// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package emission_test

import (
	"math"
	"testing"

	"github.com/bredelings/argweaver/coalmodel"
	"github.com/bredelings/argweaver/emission"
	"github.com/bredelings/argweaver/localtree"
	"github.com/bredelings/argweaver/seqset"
	"github.com/js-arias/timetree/simulate"
)

func testModel() *coalmodel.Model {
	return coalmodel.New(12, 2_000_000, 10_000, 1.6e-8, 2.5e-8, 10)
}

func testTree(t testing.TB, leaves int) *localtree.Tree {
	t.Helper()
	src := simulate.Coalescent("test", 10_000, 1_000_000, leaves)
	return localtree.New(src, testModel())
}

// alignedSeqs builds a sequence set naming every leaf of lt, with a
// mix of variant and invariant sites.
func alignedSeqs(t testing.TB, lt *localtree.Tree) (*seqset.Sequences, [][]byte) {
	t.Helper()
	patterns := [][]byte{
		{'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A'}, // invariant
		{'A', 'C', 'G', 'T', 'A', 'C', 'G', 'T'}, // variant
		{'N', 'A', 'A', 'A', 'A', 'A', 'A', 'A'}, // invariant w/ missing
	}

	s := seqset.New()
	var leaves []int
	for _, id := range lt.Nodes() {
		if lt.IsLeaf(id) {
			leaves = append(leaves, id)
		}
	}

	for i, id := range leaves {
		seq := make([]byte, len(patterns))
		for j, p := range patterns {
			seq[j] = p[i%len(p)]
		}
		if err := s.Add(lt.Taxon(id), seq); err != nil {
			t.Fatalf("unable to add sequence: %v", err)
		}
	}

	return s, patterns
}

func TestExternalFastSlowAgree(t *testing.T) {
	m := testModel()
	lt := testTree(t, 6)
	seqs, _ := alignedSeqs(t, lt)

	states := localtree.GetCoalStates(lt, m.NTimes, 0, false)
	newSeq := []byte{'A', 'G', 'A'}

	e := emission.NewExternal(lt, seqs, m, newSeq, 0)
	fast := e.CalcEmissions(states)
	slow := e.CalcEmissionsSlow(states)

	for i := range fast {
		for k := range fast[i] {
			if !closeEnough(fast[i][k], slow[i][k]) {
				t.Errorf("site %d state %d: fast=%v slow=%v", i, k, fast[i][k], slow[i][k])
			}
		}
	}
}

func TestInternalFastSlowAgree(t *testing.T) {
	m := testModel()
	lt := testTree(t, 8)
	seqs, _ := alignedSeqs(t, lt)

	states := localtree.GetCoalStates(lt, m.NTimes, 0, true)

	e := emission.NewInternal(lt, seqs, m)
	fast := e.CalcEmissions(states)
	slow := e.CalcEmissionsSlow(states)

	for i := range fast {
		for k := range fast[i] {
			if !closeEnough(fast[i][k], slow[i][k]) {
				t.Errorf("site %d state %d: fast=%v slow=%v", i, k, fast[i][k], slow[i][k])
			}
		}
	}
}

func TestEmissionsNonNegative(t *testing.T) {
	m := testModel()
	lt := testTree(t, 5)
	seqs, _ := alignedSeqs(t, lt)
	states := localtree.GetCoalStates(lt, m.NTimes, 0, false)

	e := emission.NewExternal(lt, seqs, m, []byte{'A', 'C', 'T'}, 0)
	emit := e.CalcEmissions(states)
	for i := range emit {
		for k, p := range emit[i] {
			if p < 0 {
				t.Errorf("site %d state %d: emission %v < 0", i, k, p)
			}
		}
	}
}

func TestInvariantSiteConstantAcrossStates(t *testing.T) {
	m := testModel()
	lt := testTree(t, 5)
	seqs, _ := alignedSeqs(t, lt)
	states := localtree.GetCoalStates(lt, m.NTimes, 0, false)

	e := emission.NewExternal(lt, seqs, m, []byte{'A', 'A', 'A'}, 0)
	emit := e.CalcEmissions(states)

	// site 0 is the all-A invariant pattern; the threaded sequence
	// also carries 'A' there, so it stays invariant.
	want := emit[0][0]
	for k, p := range emit[0] {
		if !closeEnough(p, want) {
			t.Errorf("state %d: invariant emission %v, want %v", k, p, want)
		}
	}
}

func closeEnough(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= 1e-12 {
		return true
	}
	return diff <= 1e-4*math.Max(math.Abs(a), math.Abs(b))
}
