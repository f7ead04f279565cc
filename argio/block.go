// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package argio implements an in-memory Ancestral Recombination
// Graph: an ordered sequence of genomic blocks, each carrying a local
// tree, an SPR to the previous block, a within-block transition
// operator, a switch operator, a block length and an emission matrix.
//
// It also hosts the recombination-position sampler
// (SampleRecombinations) and the ARG splicer (AddThread,
// RemoveThread) the threading driver invokes after traceback. No
// on-disk ARG format is defined.
package argio

import (
	"github.com/bredelings/argweaver/localtree"
	"github.com/bredelings/argweaver/transition"
)

// A Block is one interval of an ARG: a genomic span sharing a single
// local tree and state space. Switch is nil for the first block of an
// ARG, and also for any later block whose operator is unchanged from
// the previous one (no recombination at the boundary).
//
// A Block is owned by the ARG that yielded it; the forward and
// traceback engines borrow it for the duration of one block and must
// not retain its Tree/Op/Emit past the next Next/Prev call.
type Block struct {
	Start  int
	Length int

	Tree   *localtree.Tree
	States []localtree.State

	Op     transition.Operator
	Switch *transition.Switch

	// Emit holds emit[site][state] for this block: Length rows of
	// len(States) columns.
	Emit [][]float64
}

// BackboneBlock describes one interval of an existing ARG, before a
// new lineage is threaded through it: the local tree for that
// interval, and the SPR that produced it from the previous interval's
// tree. SPR is nil for the first interval, or when the tree did not
// change from the previous interval.
type BackboneBlock struct {
	Start  int
	Length int
	Tree   *localtree.Tree
	SPR    *localtree.SPR
}
