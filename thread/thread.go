// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package thread implements the threading driver: one invocation
// packages the emission, forward and traceback engines together with
// the recombination sampler and ARG splicer to add (or resample) one
// chromosome's lineage in an ARG.
package thread

import (
	"errors"
	"fmt"

	"github.com/bredelings/argweaver/argio"
	"github.com/bredelings/argweaver/coalmodel"
	"github.com/bredelings/argweaver/forward"
	"github.com/bredelings/argweaver/localtree"
	"github.com/bredelings/argweaver/seqset"
	"github.com/bredelings/argweaver/traceback"
	"golang.org/x/exp/rand"
)

// ErrStateNotFound reports that a pinned start or end state is absent
// from its block's state space: the caller mis-specified the
// conditioning.
var ErrStateNotFound = errors.New("thread: pinned state not found in block")

// A Result is the outcome of one threading invocation: the updated
// backbone (nil for internal-branch variants, which return the
// sampled path only and leave the input trees unchanged), the
// sampled or maximized state path, the sampled recombination events,
// and the traceback's log-likelihood proxy (0 for Viterbi, which does
// not return one).
type Result struct {
	Backbone []argio.BackboneBlock
	Path     []int
	Recombs  []argio.RecombEvent
	LnL      float64
}

// SampleArgThread adds newChrom (sequence newSeq, age newAge) to the
// ARG described by bb by stochastic traceback.
func SampleArgThread(m *coalmodel.Model, seqs *seqset.Sequences, bb []argio.BackboneBlock, newChrom string, newSeq []byte, newAge int, rng *rand.Rand) (*Result, error) {
	return run(m, seqs, bb, newChrom, newSeq, newAge, false, 0, nil, nil, rng, false)
}

// MaxArgThread is SampleArgThread's Viterbi counterpart.
func MaxArgThread(m *coalmodel.Model, seqs *seqset.Sequences, bb []argio.BackboneBlock, newChrom string, newSeq []byte, newAge int) (*Result, error) {
	return run(m, seqs, bb, newChrom, newSeq, newAge, false, 0, nil, nil, nil, true)
}

// CondSampleArgThread is SampleArgThread with one or both endpoints
// pinned to a given coalescence state, for conditional resampling. A
// nil start or end means "sample it".
func CondSampleArgThread(m *coalmodel.Model, seqs *seqset.Sequences, bb []argio.BackboneBlock, newChrom string, newSeq []byte, newAge int, start, end *localtree.State, rng *rand.Rand) (*Result, error) {
	return run(m, seqs, bb, newChrom, newSeq, newAge, false, 0, start, end, rng, false)
}

// ResampleArgThread detaches chrom from bb and threads it back in
// with the standard driver.
func ResampleArgThread(m *coalmodel.Model, seqs *seqset.Sequences, bb []argio.BackboneBlock, chrom string, rng *rand.Rand) (*Result, error) {
	age, ok := leafAge(bb, chrom)
	if !ok {
		return nil, fmt.Errorf("thread: chromosome %q not found in backbone", chrom)
	}
	i := seqs.Index(chrom)
	if i < 0 {
		return nil, fmt.Errorf("thread: chromosome %q has no sequence", chrom)
	}
	detached := argio.RemoveThread(bb, chrom)
	return SampleArgThread(m, seqs, detached, chrom, seqs.Seq(i), age, rng)
}

// SampleArgThreadInternal is SampleArgThread's internal-branch
// variant: it samples a regraft path for the subtree already present
// in bb's trees (the global root's child 0) rather than adding a
// brand-new leaf; the trees themselves are not modified. minAge
// is the regrafted subtree's own root age; coalescence times below it
// are excluded from the state space.
func SampleArgThreadInternal(m *coalmodel.Model, seqs *seqset.Sequences, bb []argio.BackboneBlock, minAge int, rng *rand.Rand) (*Result, error) {
	return run(m, seqs, bb, "", nil, 0, true, minAge, nil, nil, rng, false)
}

// MaxArgThreadInternal is SampleArgThreadInternal's Viterbi
// counterpart.
func MaxArgThreadInternal(m *coalmodel.Model, seqs *seqset.Sequences, bb []argio.BackboneBlock, minAge int) (*Result, error) {
	return run(m, seqs, bb, "", nil, 0, true, minAge, nil, nil, nil, true)
}

func run(m *coalmodel.Model, seqs *seqset.Sequences, bb []argio.BackboneBlock, newChrom string, newSeq []byte, newAge int, internal bool, minAge int, start, end *localtree.State, rng *rand.Rand, useViterbi bool) (*Result, error) {
	var arg *argio.ARG
	var err error
	if internal {
		arg, err = argio.BuildInternalThread(bb, m, seqs, minAge)
	} else {
		arg, err = argio.BuildThread(bb, m, seqs, newSeq, newAge)
	}
	if err != nil {
		return nil, err
	}
	if arg.NBlocks() == 0 {
		return nil, fmt.Errorf("thread: empty ARG")
	}

	prior, err := startPrior(arg, start)
	if err != nil {
		return nil, err
	}

	genLen := arg.GenomicLength()
	table := forward.NewTable(genLen)
	if err := forward.Run(arg, prior, table); err != nil {
		return nil, err
	}

	endIdx, err := endIndex(arg, end)
	if err != nil {
		return nil, err
	}

	path := make([]int, genLen)
	var lnl float64
	if useViterbi {
		if err := traceback.Viterbi(arg, table, path, endIdx); err != nil {
			return nil, err
		}
	} else {
		lnl, err = traceback.Stochastic(arg, table, path, endIdx, rng)
		if err != nil {
			return nil, err
		}
	}

	if internal {
		// The internal-branch variants leave the subtree already
		// present in bb's trees where it is; the path fully
		// describes the regraft, but splicing it back into the
		// concrete per-block trees is left to the caller (the
		// maintree/subtree split is a property of how bb was built,
		// not something argio.AddThread's leaf-insertion splice
		// handles).
		return &Result{Path: path, LnL: lnl}, nil
	}

	recombs, err := argio.SampleRecombinations(arg, path, rng)
	if err != nil {
		return nil, err
	}
	newBB, err := argio.AddThread(arg, path, recombs, newChrom, newAge)
	if err != nil {
		return nil, err
	}
	return &Result{Backbone: newBB, Path: path, Recombs: recombs, LnL: lnl}, nil
}

// startPrior builds the one-hot prior forward.Run needs when the
// start state is pinned.
func startPrior(arg *argio.ARG, start *localtree.State) ([]float64, error) {
	if start == nil {
		return nil, nil
	}
	arg.SeekStart()
	blk, _, ok := arg.Next()
	if !ok {
		return nil, fmt.Errorf("thread: empty ARG")
	}
	i := localtree.Find(blk.States, start.Node, start.Time)
	if i < 0 {
		return nil, fmt.Errorf("thread: start state: %w", ErrStateNotFound)
	}
	prior := make([]float64, len(blk.States))
	prior[i] = 1
	return prior, nil
}

// endIndex locates the pinned end state in the last block's States,
// or returns -1 ("sample it") when end is nil.
func endIndex(arg *argio.ARG, end *localtree.State) (int, error) {
	if end == nil {
		return -1, nil
	}
	arg.SeekEnd()
	blk, _, ok := arg.Prev()
	if !ok {
		return -1, fmt.Errorf("thread: empty ARG")
	}
	i := localtree.Find(blk.States, end.Node, end.Time)
	if i < 0 {
		return -1, fmt.Errorf("thread: end state: %w", ErrStateNotFound)
	}
	return i, nil
}

// leafAge returns the time-grid age of the named leaf, found by
// scanning the backbone's trees (it is the same in every tree that
// contains the chromosome).
func leafAge(bb []argio.BackboneBlock, chrom string) (int, bool) {
	for _, blk := range bb {
		for _, id := range blk.Tree.Nodes() {
			if blk.Tree.IsLeaf(id) && blk.Tree.Taxon(id) == chrom {
				return blk.Tree.Node(id).Age, true
			}
		}
	}
	return 0, false
}
