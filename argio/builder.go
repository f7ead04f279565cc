// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package argio

import (
	"slices"

	"github.com/bredelings/argweaver/coalmodel"
	"github.com/bredelings/argweaver/emission"
	"github.com/bredelings/argweaver/localtree"
	"github.com/bredelings/argweaver/seqset"
	"github.com/bredelings/argweaver/transition"
)

// BuildThread assembles the per-block iterator a threading run sweeps
// with the forward/traceback engines: for each interval of an
// existing ARG (bb) it enumerates the coalescent state space, builds
// the within-block transition operator and the cross-block switch
// operator, and computes the external-threading emission matrix for
// newSeq (a new leaf of age newAge).
func BuildThread(bb []BackboneBlock, m *coalmodel.Model, seqs *seqset.Sequences, newSeq []byte, newAge int) (*ARG, error) {
	return build(bb, m, func(tree *localtree.Tree) *emission.Engine {
		return emission.NewExternal(tree, seqs, m, newSeq, newAge)
	}, false, 0)
}

// BuildInternalThread is BuildThread's internal-threading
// counterpart: states are enumerated with minAge applied, and
// emissions use the subtree/maintree pruning split instead of the
// external new-leaf split.
func BuildInternalThread(bb []BackboneBlock, m *coalmodel.Model, seqs *seqset.Sequences, minAge int) (*ARG, error) {
	return build(bb, m, func(tree *localtree.Tree) *emission.Engine {
		return emission.NewInternal(tree, seqs, m)
	}, true, minAge)
}

func build(bb []BackboneBlock, m *coalmodel.Model, newEngine func(*localtree.Tree) *emission.Engine, internal bool, minAge int) (*ARG, error) {
	arg := New()

	var prevStates []localtree.State
	for i, blk := range bb {
		states := localtree.GetCoalStates(blk.Tree, m.NTimes, minAge, internal)

		var emit [][]float64
		if len(states) > 0 {
			emit = newEngine(blk.Tree).CalcEmissions(states)
		}

		var op transition.Operator
		if len(states) > 0 {
			op = transition.New(blk.Tree, states, m, minAge)
		}

		var sw *transition.Switch
		if i > 0 && len(prevStates) > 0 && len(states) > 0 {
			switch {
			case blk.SPR != nil:
				sw = transition.NewSwitch(*blk.SPR, prevStates, states)
			case !slices.Equal(prevStates, states):
				// the tree changed but no SPR was recorded; an
				// identity switch keeps the column sizes aligned,
				// mapping each state onto its (node, time)
				// counterpart. A no-switch continuation is only
				// valid when the state spaces are identical.
				sw = transition.Identity(prevStates, states)
			}
		}

		arg.Add(Block{
			Start:  blk.Start,
			Length: blk.Length,
			Tree:   blk.Tree,
			States: states,
			Op:     op,
			Switch: sw,
			Emit:   emit,
		})
		prevStates = states
	}
	return arg, nil
}
