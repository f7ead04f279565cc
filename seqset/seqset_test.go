// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package seqset_test

import (
	"strings"
	"testing"

	"github.com/bredelings/argweaver/seqset"
)

func TestTSVRoundTrip(t *testing.T) {
	in := "taxon\tsequence\nhuman\tACGTN\nchimp\tacgan\n"
	s, err := seqset.ReadTSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unable to read: %v", err)
	}
	if s.NSeqs() != 2 {
		t.Fatalf("nseqs: got %d, want 2", s.NSeqs())
	}
	if s.SeqLen() != 5 {
		t.Fatalf("seqlen: got %d, want 5", s.SeqLen())
	}
	if got := string(s.Seq(1)); got != "ACGAN" {
		t.Errorf("seq 1: got %q, want %q", got, "ACGAN")
	}

	var buf strings.Builder
	if err := s.TSV(&buf); err != nil {
		t.Fatalf("unable to write: %v", err)
	}

	s2, err := seqset.ReadTSV(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("unable to re-read: %v", err)
	}
	if s2.NSeqs() != s.NSeqs() {
		t.Errorf("round trip nseqs: got %d, want %d", s2.NSeqs(), s.NSeqs())
	}
}

func TestMismatchedLength(t *testing.T) {
	s := seqset.New()
	if err := s.Add("a", []byte("ACGT")); err != nil {
		t.Fatalf("unable to add: %v", err)
	}
	if err := s.Add("b", []byte("ACG")); err == nil {
		t.Fatalf("expected a length-mismatch error")
	}
}

func TestIsInvariant(t *testing.T) {
	s := seqset.New()
	s.Add("a", []byte("AAN"))
	s.Add("b", []byte("AAA"))
	s.Add("c", []byte("ANG"))

	if !s.IsInvariant(0) {
		t.Errorf("site 0 should be invariant")
	}
	if !s.IsInvariant(1) {
		t.Errorf("site 1 should be invariant")
	}
	if s.IsInvariant(2) {
		t.Errorf("site 2 should not be invariant")
	}
}

func TestReadFasta(t *testing.T) {
	in := ">human\nACGT\nN\n>chimp\nACGA\nN\n"
	s, err := seqset.ReadFasta(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unable to read fasta: %v", err)
	}
	if s.NSeqs() != 2 {
		t.Fatalf("nseqs: got %d, want 2", s.NSeqs())
	}
	if got := string(s.Seq(0)); got != "ACGTN" {
		t.Errorf("seq 0: got %q, want %q", got, "ACGTN")
	}
}
