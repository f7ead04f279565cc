// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package emission

import (
	"math"

	"github.com/bredelings/argweaver/coalmodel"
	"github.com/bredelings/argweaver/localtree"
	"github.com/bredelings/argweaver/seqset"
)

// An Engine computes per-site emission likelihoods for every
// candidate coalescent state of a single genomic block's local tree.
//
// An Engine is built in one of two modes (external or internal
// threading); the mode determines which combine path CalcEmissions
// takes, but both share the same substitution kernel, invariant-site
// shortcut and output shape.
type Engine struct {
	tree  *localtree.Tree
	seqs  *seqset.Sequences
	model *coalmodel.Model
	mu    float64

	internal bool

	// external-mode only: the sequence being threaded in, and the
	// time-grid index of its own age (0 for a present-day sample).
	newSeq []byte
	newAge int

	treeLen       float64
	invariantLike float64

	// cached per-site whole-tree inner table, built lazily and
	// reused across every candidate state of a block (external
	// mode).
	baseInner map[int]map[int]quartet

	// internal-mode caches, also built lazily and reused across
	// every candidate (node, time): inner/outer only depend on
	// node, not on the candidate attachment time.
	subInner  map[int]quartet
	mainInner map[int]map[int]quartet
	mainOuter map[int]map[int]quartet
}

// NewExternal builds an emission engine for external threading: a new
// leaf carrying newSeq, with its own age newAge (a time-grid index),
// attaches onto an existing tree.
func NewExternal(tree *localtree.Tree, seqs *seqset.Sequences, m *coalmodel.Model, newSeq []byte, newAge int) *Engine {
	e := &Engine{
		tree:      tree,
		seqs:      seqs,
		model:     m,
		mu:        m.Mu,
		newSeq:    newSeq,
		newAge:    newAge,
		baseInner: make(map[int]map[int]quartet),
	}
	e.initCommon()
	return e
}

// NewInternal builds an emission engine for internal threading: the
// subtree rooted at child 0 of tree's global root regrafts onto a
// branch of the maintree rooted at child 1.
func NewInternal(tree *localtree.Tree, seqs *seqset.Sequences, m *coalmodel.Model) *Engine {
	e := &Engine{
		tree:      tree,
		seqs:      seqs,
		model:     m,
		mu:        m.Mu,
		internal:  true,
		subInner:  make(map[int]quartet),
		mainInner: make(map[int]map[int]quartet),
		mainOuter: make(map[int]map[int]quartet),
	}
	e.initCommon()
	return e
}

func (e *Engine) initCommon() {
	e.treeLen = e.tree.TreeLen(e.model)
	if !e.internal {
		// the invariant-site shortcut adds the threaded leaf's
		// floored age (MinTime for a present-day sample) to the
		// existing tree's length. The length of the new leaf's own
		// branch depends on the attachment time and is not
		// included, so the shortcut is the same for every state.
		e.treeLen += e.model.Floor(e.model.Times[e.newAge])
	}
	l := math.Max(e.treeLen, e.model.MinTime)
	e.invariantLike = 0.25 * math.Exp(-e.mu*l)
}

// subtreeRoot returns the subtree-root node ID (internal mode only).
func (e *Engine) subtreeRoot() int {
	return e.tree.Node(e.tree.Root()).Child[0]
}

// mainRoot returns the maintree-root node ID (internal mode only).
func (e *Engine) mainRoot() int {
	return e.tree.Node(e.tree.Root()).Child[1]
}

// leafBase returns the observed-base quartet at a leaf node for a
// given site, looked up by taxon name in the sequence set.
func (e *Engine) leafBase(node, site int) quartet {
	name := e.tree.Taxon(node)
	i := e.seqs.Index(name)
	if i < 0 {
		return quartet{1, 1, 1, 1}
	}
	return leafQuartet(e.seqs.Base(i, site))
}

// CalcEmissions computes emit[site][state] for every site and every
// state in states, reusing the per-site inner and outer tables across
// candidate states.
func (e *Engine) CalcEmissions(states []localtree.State) [][]float64 {
	nsites := e.seqs.SeqLen()
	emit := make([][]float64, nsites)
	for i := range emit {
		emit[i] = make([]float64, len(states))
	}

	for site := 0; site < nsites; site++ {
		if e.isInvariantSite(site) {
			for k := range states {
				emit[site][k] = e.invariantLike
			}
			continue
		}
		for k, s := range states {
			if e.internal {
				emit[site][k] = e.internalSite(site, s)
			} else {
				emit[site][k] = e.externalSite(site, s)
			}
		}
	}
	return emit
}

// isInvariantSite reports whether every observed base agrees at site,
// including the threaded sequence's own base in external mode.
func (e *Engine) isInvariantSite(site int) bool {
	if !e.seqs.IsInvariant(site) {
		return false
	}
	if e.internal {
		return true
	}
	if e.newSeq[site] == 'N' {
		return true
	}
	for i := 0; i < e.seqs.NSeqs(); i++ {
		b := e.seqs.Base(i, site)
		if b == 'N' {
			continue
		}
		return b == e.newSeq[site]
	}
	return true
}

// CalcEmissionsSlow recomputes every site and state from a fresh
// full-tree postorder, with none of CalcEmissions' caching: the
// reference path the fast path is checked against.
func (e *Engine) CalcEmissionsSlow(states []localtree.State) [][]float64 {
	nsites := e.seqs.SeqLen()
	emit := make([][]float64, nsites)
	for i := range emit {
		emit[i] = make([]float64, len(states))
	}

	for site := 0; site < nsites; site++ {
		if e.isInvariantSite(site) {
			for k := range states {
				emit[site][k] = e.invariantLike
			}
			continue
		}
		for k, s := range states {
			if e.internal {
				emit[site][k] = e.internalSiteSlow(site, s)
			} else {
				emit[site][k] = e.externalSiteSlow(site, s)
			}
		}
	}
	return emit
}
