// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package forward implements the HMM forward pass: a column-by-column
// sweep along a chromosome, normalized per site, block-wise with a
// switch step applied at recombination breakpoints.
package forward

import (
	"errors"
	"fmt"

	"github.com/bredelings/argweaver/argio"
	"github.com/bredelings/argweaver/localtree"
	"github.com/bredelings/argweaver/transition"
)

// ErrDegenerateColumn reports a forward column whose entries are all
// zero or negative.
var ErrDegenerateColumn = errors.New("forward: column has zero mass")

// A Table is the forward table: one normalized column per genomic
// site, owned by the threading driver for the lifetime of one
// threading run.
type Table struct {
	Cols [][]float64
}

// NewTable allocates a table sized to a chromosome of the given
// genomic length; columns are filled in by Run.
func NewTable(genomicLength int) *Table {
	return &Table{Cols: make([][]float64, genomicLength)}
}

// Run fills table by sweeping arg's blocks in genomic order. If prior
// is non-nil it seeds the first column at the ARG's first block's
// start coordinate; otherwise the first column is drawn from the
// first block's operator's state prior.
func Run(arg *argio.ARG, prior []float64, table *Table) error {
	arg.SeekStart()

	first := true
	for {
		blk, _, ok := arg.Next()
		if !ok {
			break
		}

		if len(blk.States) == 0 {
			// Degenerate state space: a fully specified subtree with
			// nothing left to attach to. Columns are a length-1
			// placeholder, copied forward unchanged.
			for site := blk.Start; site < blk.Start+blk.Length; site++ {
				table.Cols[site] = []float64{1}
			}
			first = false
			continue
		}

		startSite := blk.Start
		if first {
			col, err := initialColumn(blk, prior)
			if err != nil {
				return fmt.Errorf("forward: site %d: %w", blk.Start, err)
			}
			table.Cols[blk.Start] = col
			startSite = blk.Start + 1
		} else if blk.Switch == nil {
			// No-switch continuation: the operator is unchanged from
			// the previous block, so the first column of this block
			// is just one more within-block step, not a switch.
			col, err := WithinBlockStep(blk.Op, blk.States, table.Cols[blk.Start-1], blk.Emit[0])
			if err != nil {
				return fmt.Errorf("forward: site %d: %w", blk.Start, err)
			}
			table.Cols[blk.Start] = col
			startSite = blk.Start + 1
		} else {
			col, err := SwitchStep(blk.Switch, table.Cols[blk.Start-1], blk.Emit[0])
			if err != nil {
				return fmt.Errorf("forward: site %d: %w", blk.Start, err)
			}
			table.Cols[blk.Start] = col
			startSite = blk.Start + 1
		}

		for site := startSite; site < blk.Start+blk.Length; site++ {
			col, err := WithinBlockStep(blk.Op, blk.States, table.Cols[site-1], blk.Emit[site-blk.Start])
			if err != nil {
				return fmt.Errorf("forward: site %d: %w", site, err)
			}
			table.Cols[site] = col
		}

		first = false
	}
	return nil
}

// initialColumn builds the first column of a forward pass: either the
// caller-supplied prior (multiplied by the block's first emission
// row), or the operator's state prior when no prior is given.
func initialColumn(blk argio.Block, prior []float64) ([]float64, error) {
	col := make([]float64, len(blk.States))
	if prior != nil {
		if len(prior) != len(col) {
			return nil, fmt.Errorf("prior length %d does not match state count %d", len(prior), len(col))
		}
		copy(col, prior)
	} else {
		copy(col, blk.Op.StatePrior())
	}
	for k := range col {
		col[k] *= blk.Emit[0][k]
	}
	return normalize(col)
}

// WithinBlockStep computes the next column from col1 using the
// factored transition operator: a group-sum over source times, a
// time-only contraction, and a same-branch correction per destination
// state, instead of a full matrix product over every state pair.
func WithinBlockStep(op transition.Operator, states []localtree.State, col1, emitRow []float64) ([]float64, error) {
	ntimes := op.NTimes()

	fg := make([]float64, ntimes)
	for j, s := range states {
		fg[s.Time] += col1[j]
	}

	tfg := make([]float64, ntimes)
	for b := 0; b < ntimes; b++ {
		var sum float64
		for a := 0; a < ntimes; a++ {
			sum += op.TimeOnly(a, b) * fg[a]
		}
		tfg[b] = sum
	}

	idx := op.Indexes()
	col2 := make([]float64, len(states))
	for k, s := range states {
		val := tfg[s.Time]

		if start, ok := idx[s.Node]; ok {
			age1, age2 := op.Age1(s.Node), op.Age2(s.Node)
			for j := start; j < len(states) && states[j].Node == s.Node; j++ {
				a := states[j].Time
				if a < age1 || a > age2 {
					continue
				}
				val += op.TimeNodeDelta(a, s) * col1[j]
			}
		}

		col2[k] = val * emitRow[k]
	}
	return normalize(col2)
}

// SwitchStep computes the cross-block column at a recombination
// breakpoint from the switch operator.
func SwitchStep(sw *transition.Switch, col1, emitRow []float64) ([]float64, error) {
	col2 := make([]float64, len(emitRow))

	for j, d := range sw.Determ {
		if j == sw.RecombSrc || j == sw.RecoalSrc {
			continue
		}
		if d < 0 {
			continue
		}
		col2[d] += col1[j] * expProb(sw.DetermProb[j])
	}

	if sw.RecombSrc >= 0 {
		addRow(col2, col1[sw.RecombSrc], sw.RecombRow)
	}
	if sw.RecoalSrc >= 0 {
		addRow(col2, col1[sw.RecoalSrc], sw.RecoalRow)
	}

	for k := range col2 {
		col2[k] *= emitRow[k]
	}
	return normalize(col2)
}

func addRow(col2 []float64, mass float64, row []float64) {
	for k, lp := range row {
		if negInf(lp) {
			continue
		}
		col2[k] += mass * expProb(lp)
	}
}

// normalize scales col so that it sums to 1, returning
// ErrDegenerateColumn if it carries no mass.
func normalize(col []float64) ([]float64, error) {
	var sum float64
	max := 0.0
	for _, v := range col {
		sum += v
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		return nil, ErrDegenerateColumn
	}
	for i := range col {
		col[i] /= sum
	}
	return col, nil
}
