// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package argio

import (
	"fmt"

	"github.com/bredelings/argweaver/localtree"
)

// AddThread splices a new chromosome into the backbone following the
// traced coalescent-state path and the sampled recombination events:
// the chromosome is split at every recombination position and a fresh
// SPR recorded, so the result carries exactly one local tree per
// interval of constant attachment.
//
// arg is the thread iterator path was sampled over (built by
// BuildThread/BuildInternalThread); its blocks supply the States each
// path index refers into. recombs is the event list produced by
// SampleRecombinations over the same path. chrom and newAge name and
// date the leaf InsertLeaf grafts at every interval.
func AddThread(arg *ARG, path []int, recombs []RecombEvent, chrom string, newAge int) ([]BackboneBlock, error) {
	breaks := make(map[int]bool, len(recombs))
	for _, ev := range recombs {
		breaks[ev.Pos] = true
	}

	var out []BackboneBlock
	arg.SeekStart()

	var prevSPR *localtree.SPR
	for {
		blk, _, ok := arg.Next()
		if !ok {
			break
		}
		if len(blk.States) == 0 {
			out = append(out, BackboneBlock{Start: blk.Start, Length: blk.Length, Tree: blk.Tree, SPR: prevSPR})
			prevSPR = nil
			continue
		}

		for _, seg := range attachmentSegments(blk, path, breaks) {
			if seg.end >= len(path) {
				return nil, fmt.Errorf("argio: path shorter than genomic length at site %d", seg.end)
			}
			tree := blk.Tree.InsertLeaf(seg.state.Node, seg.state.Time, chrom, newAge)
			out = append(out, BackboneBlock{
				Start:  seg.start,
				Length: seg.end - seg.start + 1,
				Tree:   tree,
				SPR:    prevSPR,
			})
			prevSPR = &localtree.SPR{
				RecombNode: seg.state.Node,
				RecombTime: seg.state.Time,
				CoalNode:   seg.state.Node,
				CoalTime:   seg.state.Time,
			}
		}
	}
	return out, nil
}

// attachmentSegment is one maximal run of sites within a block that
// attach to the same branch of the existing tree.
type attachmentSegment struct {
	start, end int
	state      localtree.State
}

// attachmentSegments splits blk at each sampled recombination position,
// the unit AddThread grafts one InsertLeaf call onto. Sites where the
// traced attachment node changes without a sampled event also split,
// so a sparse event list cannot merge two different attachments into
// one graft.
func attachmentSegments(blk Block, path []int, breaks map[int]bool) []attachmentSegment {
	var segs []attachmentSegment
	last := blk.Start + blk.Length - 1

	segStart := blk.Start
	segState := blk.States[path[blk.Start]]
	for site := blk.Start + 1; site <= last; site++ {
		s := blk.States[path[site]]
		if breaks[site] || s.Node != segState.Node {
			segs = append(segs, attachmentSegment{start: segStart, end: site - 1, state: segState})
			segStart = site
			segState = s
		}
	}
	segs = append(segs, attachmentSegment{start: segStart, end: last, state: segState})
	return segs
}

// RemoveThread detaches chrom from every interval of the backbone,
// the inverse of AddThread. Intervals where chrom is not present (it
// is already absent, or the leaf name does not match) are passed
// through unchanged.
func RemoveThread(bb []BackboneBlock, chrom string) []BackboneBlock {
	out := make([]BackboneBlock, len(bb))
	for i, blk := range bb {
		nt, ok := blk.Tree.RemoveLeafByName(chrom)
		if !ok {
			out[i] = blk
			continue
		}
		out[i] = BackboneBlock{Start: blk.Start, Length: blk.Length, Tree: nt, SPR: blk.SPR}
	}
	return out
}
