// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package viterbi implements a command to thread a new chromosome into
// an ARG by maximum-likelihood (Viterbi) traceback.
package viterbi

import (
	"fmt"
	"os"

	"github.com/bredelings/argweaver/argio"
	"github.com/bredelings/argweaver/coalmodel"
	"github.com/bredelings/argweaver/localtree"
	"github.com/bredelings/argweaver/seqset"
	"github.com/bredelings/argweaver/thread"
	"github.com/js-arias/command"
	"github.com/js-arias/timetree"
)

var Command = &command.Command{
	Usage: `viterbi [--age <value>]
	<model-file> <tree-file> <seq-file> <taxon>`,
	Short: "thread a new chromosome by maximum likelihood",
	Long: `
Command viterbi is thread's maximum-likelihood counterpart: instead of
sampling a coalescent-state trajectory, it finds the single most likely one
with the Viterbi maximizer, and splices it into the backbone the same way.

Arguments and the --age flag are as in thread.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var ageFlag float64

func setFlags(c *command.Command) {
	c.Flags().Float64Var(&ageFlag, "age", 0, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 4 {
		return c.UsageError("expecting model, tree, sequence files, and a taxon name")
	}

	m, bb, seqs, err := readInputs(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	taxon := args[3]

	i := seqs.Index(taxon)
	if i < 0 {
		return fmt.Errorf("taxon %q has no sequence", taxon)
	}

	res, err := thread.MaxArgThread(m, seqs, bb, taxon, seqs.Seq(i), m.TimeIndex(ageFlag))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Stdout(), "blocks\t%d\n", len(res.Backbone))
	return nil
}

// readInputs reads the model, backbone trees and sequence alignment
// shared by the thread/viterbi/resample subcommands, splitting the
// alignment into one genomic interval per tree in the tree file and
// recovering the SPR between consecutive intervals from their changed
// parent assignments.
func readInputs(modelFile, treeFile, seqFile string) (*coalmodel.Model, []argio.BackboneBlock, *seqset.Sequences, error) {
	m, err := coalmodel.Read(modelFile)
	if err != nil {
		return nil, nil, nil, err
	}

	sf, err := os.Open(seqFile)
	if err != nil {
		return nil, nil, nil, err
	}
	defer sf.Close()
	seqs, err := seqset.ReadFasta(sf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("on file %q: %v", seqFile, err)
	}

	tf, err := os.Open(treeFile)
	if err != nil {
		return nil, nil, nil, err
	}
	defer tf.Close()
	tc, err := timetree.ReadTSV(tf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("on file %q: %v", treeFile, err)
	}
	names := tc.Names()
	if len(names) == 0 {
		return nil, nil, nil, fmt.Errorf("on file %q: no trees defined", treeFile)
	}
	if len(names) > seqs.SeqLen() {
		return nil, nil, nil, fmt.Errorf("on file %q: %d trees for %d sites", treeFile, len(names), seqs.SeqLen())
	}

	per := seqs.SeqLen() / len(names)
	var bb []argio.BackboneBlock
	var prev *localtree.Tree
	start := 0
	for i, tn := range names {
		lt := localtree.New(tc.Tree(tn), m)
		length := per
		if i == len(names)-1 {
			length = seqs.SeqLen() - start
		}
		var spr *localtree.SPR
		if prev != nil {
			spr = localtree.InferSPR(prev, lt)
		}
		bb = append(bb, argio.BackboneBlock{Start: start, Length: length, Tree: lt, SPR: spr})
		start += length
		prev = lt
	}

	return m, bb, seqs, nil
}
