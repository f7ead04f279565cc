// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package coalmodel implements the demographic and mutation model
// consumed by the ARG threading engine: a discretized time grid,
// per-interval population sizes, and the scalar mutation and
// recombination rates used by the emission and transition packages.
package coalmodel

import (
	"math"
	"slices"
)

// Model is the demographic and mutation model for a single threading
// run. It satisfies the Model external collaborator of the threading
// core (coalmodel does not itself implement the core; it is consumed
// by transition and emission).
type Model struct {
	// NTimes is the number of points in the discretized time grid.
	NTimes int

	// Times holds the time grid, in generations, strictly
	// ascending, with Times[0] == 0.
	Times []float64

	// PopSizes holds the effective population size of the
	// interval starting at Times[i], one entry per time-grid
	// point. PopSizeAt reuses the last entry for any index past
	// the end of the slice.
	PopSizes []float64

	// Rho is the recombination rate, per site per generation.
	Rho float64

	// Mu is the mutation rate, per site per generation.
	Mu float64

	// MinTime floors branch lengths so that no branch is exactly
	// zero length.
	MinTime float64

	// RemovedRootTime is the age assigned to a lineage detached
	// during resampling, before it is rethreaded.
	RemovedRootTime float64
}

// New returns a model with an evenly log-spaced time grid of ntimes
// points between 0 and maxtime, and a constant population size.
func New(ntimes int, maxtime, popsize, rho, mu, mintime float64) *Model {
	times := make([]float64, ntimes)
	pops := make([]float64, ntimes)
	for i := range times {
		if i == 0 {
			times[i] = 0
		} else {
			// log-spaced grid, matching the coalescent
			// convention of denser sampling near the
			// present.
			frac := float64(i) / float64(ntimes-1)
			times[i] = maxtime * expm1Ratio(frac)
		}
		pops[i] = popsize
	}
	return &Model{
		NTimes:   ntimes,
		Times:    times,
		PopSizes: pops,
		Rho:      rho,
		Mu:       mu,
		MinTime:  mintime,
	}
}

// expm1Ratio maps [0,1] to [0,1] with a convex curve so that the time
// grid built by New is denser near the present.
func expm1Ratio(x float64) float64 {
	const k = 10.0
	return (math.Exp(k*x) - 1) / (math.Exp(k) - 1)
}

// GetLocalModel copies the model into out. It exists so that a caller
// threading a chromosome with spatially varying rates can supply a
// Model whose GetLocalModel resolves rho/mu per genomic position; the
// base Model is spatially constant, so it simply copies itself.
func (m *Model) GetLocalModel(pos int, out *Model) {
	out.NTimes = m.NTimes
	out.Times = m.Times
	out.PopSizes = m.PopSizes
	out.Rho = m.Rho
	out.Mu = m.Mu
	out.MinTime = m.MinTime
	out.RemovedRootTime = m.RemovedRootTime
}

// TimeIndex returns the index of the closest time-grid point to t.
func (m *Model) TimeIndex(t float64) int {
	i, ok := slices.BinarySearch(m.Times, t)
	if ok {
		return i
	}
	if i == 0 {
		return 0
	}
	if i >= len(m.Times) {
		return len(m.Times) - 1
	}
	if t-m.Times[i-1] <= m.Times[i]-t {
		return i - 1
	}
	return i
}

// PopSizeAt returns the population size for the interval starting at
// time-grid index i.
func (m *Model) PopSizeAt(i int) float64 {
	if i >= len(m.PopSizes) {
		return m.PopSizes[len(m.PopSizes)-1]
	}
	return m.PopSizes[i]
}

// Floor floors a branch length at MinTime.
func (m *Model) Floor(t float64) float64 {
	if t < m.MinTime {
		return m.MinTime
	}
	return t
}
