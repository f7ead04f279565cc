// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package seqset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadTSV reads a sequence set from a TSV file.
//
// The TSV file must contain the following fields:
//
//   - taxon, the taxonomic name of the sequence
//   - sequence, the base calls
//
// Here is an example file:
//
//	taxon	sequence
//	human	ACGTN
//	chimp	ACGAN
func ReadTSV(r io.Reader) (*Sequences, error) {
	tab := csv.NewReader(r)
	tab.Comma = '\t'
	tab.Comment = '#'

	head, err := tab.Read()
	if err != nil {
		return nil, fmt.Errorf("while reading header: %v", err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		fields[strings.ToLower(h)] = i
	}
	for _, h := range []string{"taxon", "sequence"} {
		if _, ok := fields[h]; !ok {
			return nil, fmt.Errorf("expecting field %q", h)
		}
	}

	s := New()
	for {
		row, err := tab.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tab.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on row %d: %v", ln, err)
		}

		f := "taxon"
		tax := strings.TrimSpace(row[fields[f]])
		if tax == "" {
			continue
		}

		f = "sequence"
		seq := row[fields[f]]
		if err := s.Add(tax, []byte(seq)); err != nil {
			return nil, fmt.Errorf("on row %d: %v", ln, err)
		}
	}
	return s, nil
}

// TSV writes a sequence set as a TSV file.
func (s *Sequences) TSV(w io.Writer) error {
	tab := csv.NewWriter(w)
	tab.Comma = '\t'
	tab.UseCRLF = true

	header := []string{"taxon", "sequence"}
	if err := tab.Write(header); err != nil {
		return fmt.Errorf("unable to write header: %v", err)
	}

	for i := 0; i < s.NSeqs(); i++ {
		row := []string{s.Name(i), string(s.Seq(i))}
		if err := tab.Write(row); err != nil {
			return fmt.Errorf("when writing data: %v", err)
		}
	}

	tab.Flush()
	if err := tab.Error(); err != nil {
		return fmt.Errorf("when writing data: %v", err)
	}
	return nil
}

// ReadFasta reads a sequence set from a FASTA file.
func ReadFasta(r io.Reader) (*Sequences, error) {
	s := New()
	br := bufio.NewScanner(r)

	var name string
	var seq strings.Builder
	flush := func() error {
		if name == "" {
			return nil
		}
		if err := s.Add(name, []byte(seq.String())); err != nil {
			return err
		}
		seq.Reset()
		return nil
	}

	for br.Scan() {
		line := strings.TrimSpace(br.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.TrimSpace(line[1:])
			continue
		}
		seq.WriteString(line)
	}
	if err := br.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return s, nil
}
