// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package traceback implements the backward pass over a forward
// table: a stochastic sampler and a Viterbi maximizer, both walking
// the ARG's blocks in reverse.
package traceback

import (
	"errors"
	"fmt"
	"math"

	"github.com/bredelings/argweaver/argio"
	"github.com/bredelings/argweaver/forward"
	"github.com/bredelings/argweaver/transition"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrStateNotFound reports that a pinned endpoint state does not
// appear in the block it was asked to be pinned into.
var ErrStateNotFound = errors.New("traceback: pinned state not found in block")

// ErrPathDeadEnd reports a traced transition of probability zero: the
// forward table and the transition operator are inconsistent.
var ErrPathDeadEnd = errors.New("traceback: transition probability is zero along the traced path")

// Stochastic samples a coalescence-point trajectory from table by
// backward traceback. path must be sized to the ARG's genomic length;
// every entry is filled with the sampled state index at that site. If
// lastState >= 0 the final position is pinned to it instead of
// sampled. The returned value is a diagnostic log-likelihood proxy,
// not a normalized joint probability: it accumulates ln(col[path]) at
// the final-column pick, and ln(col[path]) plus the switch
// log-probability at every switch-boundary step; within-block steps
// add nothing.
func Stochastic(arg *argio.ARG, table *forward.Table, path []int, lastState int, rng *rand.Rand) (float64, error) {
	var lnl float64

	nextState := -1
	var pendingSwitch *transition.Switch

	arg.SeekEnd()
	for {
		blk, _, ok := arg.Prev()
		if !ok {
			break
		}

		if blk.Op == nil {
			// degenerate state space: the single placeholder column
			// is copied through unchanged.
			for site := blk.Start + blk.Length - 1; site >= blk.Start; site-- {
				path[site] = 0
			}
			nextState = 0
			pendingSwitch = nil
			continue
		}

		last := blk.Start + blk.Length - 1

		switch {
		case nextState < 0:
			col := table.Cols[last]
			if lastState >= 0 {
				if lastState >= len(col) {
					return lnl, fmt.Errorf("site %d: %w", last, ErrStateNotFound)
				}
				nextState = lastState
			} else {
				nextState = sampleColumn(col, rng)
			}
			lnl += math.Log(col[nextState])
			path[last] = nextState
			last--
		case pendingSwitch != nil:
			col := table.Cols[last]
			weights := make([]float64, len(col))
			for j := range col {
				lp := switchLogProb(pendingSwitch, j, nextState)
				weights[j] = col[j] * expLog(lp)
			}
			j, err := pickWeighted(weights, rng)
			if err != nil {
				return lnl, fmt.Errorf("site %d: %w", last, err)
			}
			lnl += math.Log(col[j]) + switchLogProb(pendingSwitch, j, nextState)
			nextState = j
			path[last] = j
			last--
		}

		// the traced path has long runs of equal states, so the
		// transition column T(., nextState) is cached and rebuilt
		// only when nextState changes.
		probCol := make([]float64, len(blk.States))
		cachedK := -1
		for site := last; site >= blk.Start; site-- {
			if nextState != cachedK {
				for j := range probCol {
					probCol[j] = blk.Op.Prob(j, nextState)
				}
				cachedK = nextState
			}
			col := table.Cols[site]
			weights := make([]float64, len(col))
			for j := range col {
				weights[j] = col[j] * probCol[j]
			}
			j, err := pickWeighted(weights, rng)
			if err != nil {
				return lnl, fmt.Errorf("site %d: %w", site, err)
			}
			nextState = j
			path[site] = j
		}

		pendingSwitch = blk.Switch
	}
	return lnl, nil
}

// Viterbi fills path with the maximum-likelihood coalescence-point
// trajectory, maintained in log space throughout (linear space would
// underflow at chromosome scale). lastState pins the final position
// when >= 0.
func Viterbi(arg *argio.ARG, table *forward.Table, path []int, lastState int) error {
	nextState := -1
	var pendingSwitch *transition.Switch

	arg.SeekEnd()
	for {
		blk, _, ok := arg.Prev()
		if !ok {
			break
		}

		if blk.Op == nil {
			for site := blk.Start + blk.Length - 1; site >= blk.Start; site-- {
				path[site] = 0
			}
			nextState = 0
			pendingSwitch = nil
			continue
		}

		last := blk.Start + blk.Length - 1

		switch {
		case nextState < 0:
			col := table.Cols[last]
			if lastState >= 0 {
				if lastState >= len(col) {
					return fmt.Errorf("site %d: %w", last, ErrStateNotFound)
				}
				nextState = lastState
			} else {
				nextState = argmax(col)
			}
			path[last] = nextState
			last--
		case pendingSwitch != nil:
			col := table.Cols[last]
			best, bestVal := -1, math.Inf(-1)
			for j := range col {
				lp := switchLogProb(pendingSwitch, j, nextState)
				if math.IsInf(lp, -1) {
					continue
				}
				v := math.Log(col[j]) + lp
				if v > bestVal {
					best, bestVal = j, v
				}
			}
			if best < 0 {
				return fmt.Errorf("site %d: %w", last, ErrPathDeadEnd)
			}
			nextState = best
			path[last] = best
			last--
		}

		logCol := make([]float64, len(blk.States))
		cachedK := -1
		for site := last; site >= blk.Start; site-- {
			if nextState != cachedK {
				for j := range logCol {
					logCol[j] = blk.Op.LogProb(j, nextState)
				}
				cachedK = nextState
			}
			col := table.Cols[site]
			best, bestVal := -1, math.Inf(-1)
			for j := range col {
				v := math.Log(col[j]) + logCol[j]
				if v > bestVal {
					best, bestVal = j, v
				}
			}
			if best < 0 {
				return fmt.Errorf("site %d: %w", site, ErrPathDeadEnd)
			}
			nextState = best
			path[site] = best
		}

		pendingSwitch = blk.Switch
	}
	return nil
}

// switchLogProb returns the log-probability the switch operator
// assigns to source j reaching destination k.
func switchLogProb(sw *transition.Switch, j, k int) float64 {
	if j == sw.RecombSrc {
		return sw.RecombRow[k]
	}
	if j == sw.RecoalSrc {
		return sw.RecoalRow[k]
	}
	if sw.Determ[j] == k {
		return sw.DetermProb[j]
	}
	return math.Inf(-1)
}

// expLog converts a log-probability to linear space, treating -Inf as
// exactly zero.
func expLog(lp float64) float64 {
	if math.IsInf(lp, -1) {
		return 0
	}
	return math.Exp(lp)
}

// sampleColumn draws an index from col, proportional to its
// (normalized) values.
func sampleColumn(col []float64, rng *rand.Rand) int {
	j, _ := pickWeighted(col, rng)
	return j
}

// pickWeighted draws an index proportional to weights, or returns
// ErrPathDeadEnd if every weight is zero.
func pickWeighted(weights []float64, rng *rand.Rand) (int, error) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0, ErrPathDeadEnd
	}
	c := distuv.NewCategorical(weights, rng)
	return int(c.Rand()), nil
}

// argmax returns the index of the largest entry in col.
func argmax(col []float64) int {
	best, bestVal := 0, col[0]
	for i, v := range col[1:] {
		if v > bestVal {
			best, bestVal = i+1, v
		}
	}
	return best
}
