// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package argio

import (
	"github.com/bredelings/argweaver/localtree"
	"golang.org/x/exp/rand"
)

// A RecombEvent is one sampled recombination breakpoint of the newly
// threaded lineage: at genomic position Pos the lineage recombines
// onto the branch-time point (Node, Time).
type RecombEvent struct {
	Pos  int
	Node int
	Time int
}

// SampleRecombinations walks path (a state index per genomic site,
// produced by traceback) and the ARG it was sampled over, and emits
// one RecombEvent at every site where the traced coalescent state
// changes branch: a change of attachment branch between adjacent
// sites is, by construction of the state path, exactly where the new
// lineage's ancestry recombines.
//
// The event's Time is drawn uniformly from the time-grid indices the
// trajectory admits for the recombination point: at least the new
// branch's age, at most the coalescence times on either side of the
// breakpoint. A nil rng picks the lowest admissible index instead of
// sampling.
//
// A change of time-grid index on the same branch is not a
// recombination (the lineage is still attached to the same point in
// the existing tree's topology, just reported at a different
// discretized coalescence time by the sampler) and is not reported.
func SampleRecombinations(arg *ARG, path []int, rng *rand.Rand) ([]RecombEvent, error) {
	var events []RecombEvent
	arg.SeekStart()

	var prev *localtree.State
	for {
		blk, _, ok := arg.Next()
		if !ok {
			break
		}
		for site := blk.Start; site < blk.Start+blk.Length; site++ {
			if len(blk.States) == 0 {
				continue
			}
			s := blk.States[path[site]]
			if prev != nil && s.Node != prev.Node {
				tm := recombTime(blk.Tree, *prev, s, rng)
				events = append(events, RecombEvent{Pos: site, Node: s.Node, Time: tm})
			}
			cp := s
			prev = &cp
		}
	}
	return events, nil
}

// recombTime draws the time-grid index of a recombination onto the
// branch of state s, given the state held on the previous site: the
// recombining lineage must be older than the branch's base and no
// older than either flanking coalescence time.
func recombTime(tree *localtree.Tree, prev, s localtree.State, rng *rand.Rand) int {
	low := tree.Node(s.Node).Age
	high := s.Time
	if prev.Time < high {
		high = prev.Time
	}
	if high < low {
		return low
	}
	if rng == nil {
		return low
	}
	return low + rng.Intn(high-low+1)
}
