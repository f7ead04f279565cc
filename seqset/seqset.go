// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package seqset implements the observed-sequence container consumed
// by the emission engine: a fixed-width alignment of base calls keyed
// by taxon name.
package seqset

import "fmt"

// Sequences is a gapless alignment of nseqs sequences, each of the
// same length, over the alphabet {A,C,G,T,N} (case-insensitive on
// read, upper-cased on store).
type Sequences struct {
	names []string
	seqs  [][]byte
}

// New returns an empty sequence set.
func New() *Sequences {
	return &Sequences{}
}

// Add appends a named sequence. It returns an error if the new
// sequence's length disagrees with sequences already present.
func (s *Sequences) Add(name string, seq []byte) error {
	if len(s.seqs) > 0 && len(seq) != len(s.seqs[0]) {
		return fmt.Errorf("sequence %q: length %d, want %d", name, len(seq), len(s.seqs[0]))
	}
	cp := make([]byte, len(seq))
	for i, b := range seq {
		cp[i] = canonBase(b)
	}
	s.names = append(s.names, name)
	s.seqs = append(s.seqs, cp)
	return nil
}

func canonBase(b byte) byte {
	switch b {
	case 'a', 'A':
		return 'A'
	case 'c', 'C':
		return 'C'
	case 'g', 'G':
		return 'G'
	case 't', 'T':
		return 'T'
	default:
		return 'N'
	}
}

// NSeqs returns the number of sequences.
func (s *Sequences) NSeqs() int {
	return len(s.seqs)
}

// SeqLen returns the length shared by all sequences, or 0 if the set
// is empty.
func (s *Sequences) SeqLen() int {
	if len(s.seqs) == 0 {
		return 0
	}
	return len(s.seqs[0])
}

// Name returns the taxon name of sequence i.
func (s *Sequences) Name(i int) string {
	return s.names[i]
}

// Index returns the row of the named sequence, or -1 if name is not
// present.
func (s *Sequences) Index(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Base returns the base call of sequence i at site j.
func (s *Sequences) Base(i, j int) byte {
	return s.seqs[i][j]
}

// Seq returns the full sequence of i. The returned slice must not be
// modified.
func (s *Sequences) Seq(i int) []byte {
	return s.seqs[i]
}

// IsInvariant reports whether every sequence agrees on site j.
func (s *Sequences) IsInvariant(j int) bool {
	if len(s.seqs) == 0 {
		return true
	}
	var ref byte
	found := false
	for _, seq := range s.seqs {
		b := seq[j]
		if b == 'N' {
			continue
		}
		if !found {
			ref = b
			found = true
			continue
		}
		if b != ref {
			return false
		}
	}
	return true
}
