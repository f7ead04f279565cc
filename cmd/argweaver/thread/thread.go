// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package thread implements a command to thread a new chromosome into
// an ARG by stochastic sampling.
package thread

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
	Usage: `thread [--age <value>] [--seed <value>]
	<model-file> <tree-file> <seq-file> <taxon>`,
	Short: "thread a new chromosome into an ARG",
	Long: `
Command thread reads a demographic model, a backbone tree and a sequence
alignment, and adds the named taxon's sequence to the backbone by sampling a
coalescent-state trajectory with the stochastic forward-backward sampler.

The first argument is the model parameter file (see coalmodel.Read). The
second is a tree file in timetree's TSV format; its trees, in file order, are
the successive local trees of the backbone, and the alignment is split into
one genomic interval per tree. Trees in the file must share node IDs, so the
recombination between two adjacent intervals can be recovered from their
changed parent assignments. The third argument is a FASTA file with the
sequence alignment, which must include a sequence for taxon (the fourth
argument) besides the sequences already placed in the backbone trees.

The flag --age sets the new taxon's age, in generations (0, a present-day
sample, by default). The flag --seed sets the sampler's random seed.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var ageFlag float64
var seedFlag int64

func setFlags(c *command.Command) {
	c.Flags().Float64Var(&ageFlag, "age", 0, "")
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

	i := seqs.Index(taxon)
	if i < 0 {
		return fmt.Errorf("taxon %q has no sequence", taxon)
	}

	rng := rand.New(rand.NewSource(uint64(seedFlag)))

	res, err := thread.SampleArgThread(m, seqs, bb, taxon, seqs.Seq(i), m.TimeIndex(ageFlag), rng)
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
