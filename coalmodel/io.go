// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package coalmodel

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Param is a keyword to identify the type of a parameter in a model
// file.
type Param string

// Valid parameters.
const (
	// NTimes is the number of points in the time grid.
	NTimes Param = "ntimes"

	// Rho is the recombination rate per site per generation.
	Rho Param = "rho"

	// Mu is the mutation rate per site per generation.
	Mu Param = "mu"

	// MinTime is the branch-length floor.
	MinTime Param = "mintime"

	// RemovedRootTime is the age assigned to a detached lineage.
	RemovedRootTime Param = "removedroottime"

	// Stage is a time-grid point, encoded as "age,popsize".
	Stage Param = "stage"
)

var header = []string{
	"parameter",
	"value",
}

// Read reads a model from a TSV file.
//
// The TSV must contain the fields "parameter" and "value". The
// ntimes/rho/mu/mintime/removedroottime parameters each take a single
// scalar value. The stage parameter repeats once per time-grid point,
// with value encoded as "age,popsize" (age in generations, ascending).
//
// Here is an example file:
//
//	# argweaver demographic and mutation model
//	parameter	value
//	ntimes	3
//	rho	1.6e-08
//	mu	2.5e-08
//	mintime	10
//	stage	0,1000
//	stage	500,1500
//	stage	2000,2000
func Read(name string) (*Model, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f, name)
}

func read(r io.Reader, name string) (*Model, error) {
	tsv := csv.NewReader(r)
	tsv.Comma = '\t'
	tsv.Comment = '#'

	head, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("on file %q: header: %v", name, err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		fields[strings.ToLower(h)] = i
	}
	for _, h := range header {
		if _, ok := fields[h]; !ok {
			return nil, fmt.Errorf("on file %q: expecting field %q", name, h)
		}
	}

	m := &Model{}
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: %v", name, ln, err)
		}

		f := "parameter"
		p := Param(strings.ToLower(row[fields[f]]))

		f = "value"
		val := row[fields[f]]
		switch p {
		case NTimes:
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			m.NTimes = n
		case Rho:
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			m.Rho = v
		case Mu:
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			m.Mu = v
		case MinTime:
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			m.MinTime = v
		case RemovedRootTime:
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			m.RemovedRootTime = v
		case Stage:
			parts := strings.Split(val, ",")
			if len(parts) != 2 {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: expecting \"age,popsize\"", name, ln, f)
			}
			age, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			pop, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			m.Times = append(m.Times, age)
			m.PopSizes = append(m.PopSizes, pop)
		}
	}
	if m.NTimes == 0 {
		m.NTimes = len(m.Times)
	}
	return m, nil
}

// Write writes a model into a TSV file.
func Write(name string, m *Model) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		e := f.Close()
		if e != nil && err == nil {
			err = e
		}
	}()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "# argweaver demographic and mutation model\n")
	fmt.Fprintf(bw, "# data saved on: %s\n", time.Now().Format(time.RFC3339))
	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	if err := tsv.Write(header); err != nil {
		return fmt.Errorf("on file %q: while writing header: %v", name, err)
	}

	rows := [][]string{
		{string(NTimes), strconv.Itoa(m.NTimes)},
		{string(Rho), strconv.FormatFloat(m.Rho, 'g', -1, 64)},
		{string(Mu), strconv.FormatFloat(m.Mu, 'g', -1, 64)},
		{string(MinTime), strconv.FormatFloat(m.MinTime, 'g', -1, 64)},
		{string(RemovedRootTime), strconv.FormatFloat(m.RemovedRootTime, 'g', -1, 64)},
	}
	for _, row := range rows {
		if err := tsv.Write(row); err != nil {
			return fmt.Errorf("on file %q: %v", name, err)
		}
	}
	for i, t := range m.Times {
		row := []string{
			string(Stage),
			fmt.Sprintf("%s,%s",
				strconv.FormatFloat(t, 'g', -1, 64),
				strconv.FormatFloat(m.PopSizes[i], 'g', -1, 64)),
		}
		if err := tsv.Write(row); err != nil {
			return fmt.Errorf("on file %q: %v", name, err)
		}
	}

	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", name, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", name, err)
	}
	return nil
}
