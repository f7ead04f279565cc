// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package resample implements a command to detach one chromosome from
// an ARG and rethread it.
package resample

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
	"golang.org/x/exp/rand"
)

var Command = &command.Command{
	Usage: `resample [--seed <value>]
	<model-file> <tree-file> <seq-file> <taxon>`,
	Short: "resample one chromosome's lineage in an ARG",
	Long: `
Command resample detaches the named taxon from the backbone trees and
re-threads it with the stochastic sampler, the detach-and-rethread step an
MCMC sampler over ARGs repeats for each sampled chromosome in turn.

Arguments are as in thread, except that taxon must already be present in the
backbone trees (and the sequence file).
	`,
	SetFlags: setFlags,
	Run:      run,
}

var seedFlag int64

func setFlags(c *command.Command) {
	c.Flags().Int64Var(&seedFlag, "seed", 1, "")
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

	rng := rand.New(rand.NewSource(uint64(seedFlag)))

	res, err := thread.ResampleArgThread(m, seqs, bb, taxon, rng)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Stdout(), "blocks\t%d\n", len(res.Backbone))
	fmt.Fprintf(c.Stdout(), "logLikelihood\t%.6f\n", res.LnL)
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
