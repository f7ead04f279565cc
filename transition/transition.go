// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package transition implements the within-block transition operator
// and the cross-block switch operator consumed by the forward and
// traceback engines.
//
// Op implements a piecewise-constant coalescent-with-recombination
// decay, parameterized by the model's population sizes and
// recombination rate. Any other law satisfying the Operator accessor
// surface can be substituted without touching forward or traceback.
package transition

import (
	"math"

	"github.com/bredelings/argweaver/coalmodel"
	"github.com/bredelings/argweaver/localtree"
	"gonum.org/v1/gonum/stat/distuv"
)

// Operator is the accessor surface forward and traceback consume. Op
// is the concrete coalescent-decay law implemented below; any other
// type satisfying Operator can be substituted without touching
// forward or traceback.
type Operator interface {
	TimeOnly(a, b int) float64
	TimeNodeDelta(a int, k localtree.State) float64
	Age1(node int) int
	Age2(node int) int
	Prob(j, k int) float64
	LogProb(j, k int) float64
	StatePrior() []float64

	// NTimes returns the size of the time grid the operator was built
	// over, the dimension of the TimeOnly table the forward engine's
	// group-sum step contracts over.
	NTimes() int

	// Indexes returns the starting index, within States, of each
	// node's contiguous run of same-branch states.
	Indexes() map[int]int

	// States returns the state array the operator was built over.
	States() []localtree.State
}

// Op is the factored within-block transition operator for a single
// genomic block.
type Op struct {
	tree   *localtree.Tree
	states []localtree.State
	model  *coalmodel.Model
	minAge int

	indexes  map[int]int
	timeOnly [][]float64
}

// New builds the transition operator for tree and its state space.
// minAge is 0 for external threading, or the new lineage's own
// subtree-root age for internal threading.
func New(tree *localtree.Tree, states []localtree.State, m *coalmodel.Model, minAge int) *Op {
	o := &Op{
		tree:    tree,
		states:  states,
		model:   m,
		minAge:  minAge,
		indexes: localtree.Indexes(states),
	}
	o.buildTimeOnly()
	return o
}

// buildTimeOnly fills the ntimes x ntimes baseline table. Row a gives
// the probability density of the new coalescence time moving to b,
// decaying with |Times[b]-Times[a]| at the coalescent rate
// 1/(2*PopSize(a)).
func (o *Op) buildTimeOnly() {
	n := o.model.NTimes
	o.timeOnly = make([][]float64, n)
	for a := 0; a < n; a++ {
		rate := 1 / (2 * o.model.PopSizeAt(a))
		exp := distuv.Exponential{Rate: rate}
		row := make([]float64, n)
		var sum float64
		for b := 0; b < n; b++ {
			dt := math.Abs(o.model.Times[b] - o.model.Times[a])
			p := exp.Survival(dt) + 1e-12
			row[b] = p
			sum += p
		}
		// rows need not sum to 1; we still normalize so that
		// PopSize does not also rescale the overall magnitude of
		// the block's transition mass, which would otherwise bias
		// the forward normalization step.
		for b := range row {
			row[b] /= sum
		}
		o.timeOnly[a] = row
	}
}

// TimeOnly returns the ntimes x ntimes baseline table entry for
// source time a, destination time b.
func (o *Op) TimeOnly(a, b int) float64 {
	return o.timeOnly[a][b]
}

// Age1 returns the lower bound, in time-grid index units, of the
// coalescent states on branch node.
func (o *Op) Age1(node int) int {
	n := o.tree.Node(node)
	if n.Age < o.minAge {
		return o.minAge
	}
	return n.Age
}

// Age2 returns the upper bound, in time-grid index units, of the
// coalescent states on branch node.
func (o *Op) Age2(node int) int {
	n := o.tree.Node(node)
	if n.Parent == localtree.NoNode {
		return o.tree.MaxAge(o.model.NTimes)
	}
	return o.tree.Node(n.Parent).Age
}

// TimeNodeDelta returns the same-branch correction for a source at
// time a moving to destination state k, over and above the TimeOnly
// baseline: the extra mass attributable to the lineage never leaving
// branch k.Node at all (no recombination event picked a different
// branch), scaled by how much of the branch's own length survives
// recombination.
func (o *Op) TimeNodeDelta(a int, k localtree.State) float64 {
	branchLen := o.model.Floor(o.tree.GetDist(k.Node, o.model.Times))
	noRecomb := math.Exp(-o.model.Rho * branchLen)

	rate := 1 / (2 * o.model.PopSizeAt(a))
	exp := distuv.Exponential{Rate: rate}
	dt := math.Abs(o.model.Times[k.Time] - o.model.Times[a])
	kernel := exp.Survival(dt)

	return noRecomb * kernel
}

// Indexes returns the starting index, within the operator's state
// array, of node's contiguous run of same-branch states.
func (o *Op) Indexes() map[int]int {
	return o.indexes
}

// NTimes returns the size of the time grid the operator was built over.
func (o *Op) NTimes() int {
	return o.model.NTimes
}

// States returns the state array the operator was built over.
func (o *Op) States() []localtree.State {
	return o.states
}

// Prob returns the full (non-factored) transition probability from
// states[j] to states[k]. It recomputes the same quantity the
// factored forward step derives from TimeOnly/TimeNodeDelta, so the
// two can be compared directly.
func (o *Op) Prob(j, k int) float64 {
	src := o.states[j]
	dst := o.states[k]

	p := o.TimeOnly(src.Time, dst.Time)
	if src.Node == dst.Node {
		if src.Time >= o.Age1(dst.Node) && src.Time <= o.Age2(dst.Node) {
			p += o.TimeNodeDelta(src.Time, dst)
		}
	}
	return p
}

// LogProb returns math.Log(Prob(j, k)), for the Viterbi log-space
// traceback.
func (o *Op) LogProb(j, k int) float64 {
	return math.Log(o.Prob(j, k))
}

// StatePrior returns the probability mass assigned to each state when
// no caller-supplied prior is available for the first block of an
// ARG: proportional to the exponential coalescent density, at rate
// 1/(2*PopSize) of the state's time interval, evaluated at the
// floored length of the state's branch. States on the same branch
// differ only through the population size of their time interval.
func (o *Op) StatePrior() []float64 {
	prior := make([]float64, len(o.states))
	var sum float64
	for i, s := range o.states {
		rate := 1 / (2 * o.model.PopSizeAt(s.Time))
		exp := distuv.Exponential{Rate: rate}
		branchLen := o.model.Floor(o.tree.GetDist(s.Node, o.model.Times))
		w := exp.Prob(branchLen) + 1e-12
		prior[i] = w
		sum += w
	}
	for i := range prior {
		prior[i] /= sum
	}
	return prior
}
