// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package transition

import (
	"math"

	"github.com/bredelings/argweaver/localtree"
)

// negInf stands in for log(0): a destination that a distinguished
// source cannot reach.
var negInf = math.Inf(-1)

// A Switch maps the state space of one genomic block onto the state
// space of the next, across the SPR that separates them. Every source
// state maps deterministically onto a destination state, except for
// two distinguished source states -- the one on the pruned branch at
// the recombination point, and the one on the branch receiving the
// regraft -- whose probability mass spreads across several
// destinations.
//
// DetermProb and the two *Row slices hold log-probabilities.
type Switch struct {
	// Determ[j] is the destination index that source state j maps
	// to. It is -1 for the recombination source, and for any source
	// whose (node, time) is absent from the destination space. The
	// entry of the recoalescence source is not consulted.
	Determ []int

	// DetermProb[j] is the log-probability of the Determ[j] edge;
	// 0 (certainty) unless stated otherwise.
	DetermProb []float64

	// RecombSrc and RecoalSrc are the indexes, in the source state
	// space, of the pruned-branch and regraft-branch distinguished
	// states. They are -1 when the corresponding event falls
	// outside the source state space.
	RecombSrc int
	RecoalSrc int

	// RecombRow and RecoalRow give, for every destination state,
	// the log-probability mass RecombSrc and RecoalSrc
	// respectively spread onto it. Both are nil when the
	// corresponding *Src is -1; RecoalRow is also nil when
	// RecoalSrc is the same state as RecombSrc.
	RecombRow []float64
	RecoalRow []float64
}

// Identity builds the switch operator for a block boundary with no
// topology change: every source state maps onto the destination state
// of the same (node, time), used when two adjacent blocks share the
// same local tree.
func Identity(src, dst []localtree.State) *Switch {
	determ := make([]int, len(src))
	prob := make([]float64, len(src))
	for j, s := range src {
		determ[j] = localtree.Find(dst, s.Node, s.Time)
		prob[j] = 0
	}
	return &Switch{
		Determ:     determ,
		DetermProb: prob,
		RecombSrc:  -1,
		RecoalSrc:  -1,
	}
}

// NewSwitch builds the switch operator for the SPR that transforms
// prev into curr. Node IDs are assumed to persist across the SPR (only
// the parent/child edges local to the pruned and regraft branches
// change), the same invariant timetree.Tree relies on when it replays
// an edit onto an existing node set.
func NewSwitch(spr localtree.SPR, src, dst []localtree.State) *Switch {
	determ := make([]int, len(src))
	prob := make([]float64, len(src))
	for j, s := range src {
		if s.Node == spr.RecombNode && s.Time == spr.RecombTime {
			determ[j] = -1
			prob[j] = negInf
			continue
		}
		determ[j] = localtree.Find(dst, s.Node, s.Time)
		prob[j] = 0
	}

	sw := &Switch{
		Determ:     determ,
		DetermProb: prob,
		RecombSrc:  localtree.Find(src, spr.RecombNode, spr.RecombTime),
		RecoalSrc:  localtree.Find(src, spr.CoalNode, spr.CoalTime),
	}

	if sw.RecombSrc >= 0 {
		sw.RecombRow = logSpreadRow(dst, spr.CoalNode, spr.CoalTime)
	}
	if sw.RecoalSrc >= 0 && sw.RecoalSrc != sw.RecombSrc {
		sw.RecoalRow = logSpreadRow(dst, spr.CoalNode, spr.CoalTime)
	}
	return sw
}

// logSpreadRow distributes probability mass, in log space, over the
// run of destination states sharing node, giving more weight to the
// state nearest time: a source state whose branch was pruned or
// regrafted has no single deterministic destination, so its mass is
// spread across the branch it now attaches to.
func logSpreadRow(dst []localtree.State, node, time int) []float64 {
	row := make([]float64, len(dst))
	weights := make([]float64, len(dst))
	var sum float64
	for i, s := range dst {
		if s.Node != node {
			row[i] = negInf
			continue
		}
		d := s.Time - time
		if d < 0 {
			d = -d
		}
		w := 1.0 / float64(1+d)
		weights[i] = w
		sum += w
	}
	if sum == 0 {
		for i := range row {
			row[i] = negInf
		}
		return row
	}
	for i, w := range weights {
		if w == 0 {
			continue
		}
		row[i] = math.Log(w / sum)
	}
	return row
}
