// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package coalmodel_test

import (
	"reflect"
	"testing"

	"github.com/bredelings/argweaver/coalmodel"
)

func TestReadWrite(t *testing.T) {
	m := &coalmodel.Model{
		NTimes:          4,
		Times:           []float64{0, 100, 1000, 10000},
		PopSizes:        []float64{1000, 1000, 2000, 2000},
		Rho:             1.6e-8,
		Mu:              2.5e-8,
		MinTime:         10,
		RemovedRootTime: 0,
	}

	name := t.TempDir() + "/model.tab"
	if err := coalmodel.Write(name, m); err != nil {
		t.Fatalf("unable to write model: %v", err)
	}

	got, err := coalmodel.Read(name)
	if err != nil {
		t.Fatalf("unable to read model: %v", err)
	}

	if got.NTimes != m.NTimes {
		t.Errorf("ntimes: got %d, want %d", got.NTimes, m.NTimes)
	}
	if !reflect.DeepEqual(got.Times, m.Times) {
		t.Errorf("times: got %v, want %v", got.Times, m.Times)
	}
	if !reflect.DeepEqual(got.PopSizes, m.PopSizes) {
		t.Errorf("popsizes: got %v, want %v", got.PopSizes, m.PopSizes)
	}
	if got.Rho != m.Rho {
		t.Errorf("rho: got %v, want %v", got.Rho, m.Rho)
	}
	if got.Mu != m.Mu {
		t.Errorf("mu: got %v, want %v", got.Mu, m.Mu)
	}
	if got.MinTime != m.MinTime {
		t.Errorf("mintime: got %v, want %v", got.MinTime, m.MinTime)
	}
}

func TestTimeIndex(t *testing.T) {
	m := &coalmodel.Model{
		NTimes: 4,
		Times:  []float64{0, 100, 1000, 10000},
	}

	tests := []struct {
		t    float64
		want int
	}{
		{0, 0},
		{50, 0},
		{60, 1},
		{100, 1},
		{5000, 2},
		{10000, 3},
		{20000, 3},
	}
	for _, tt := range tests {
		got := m.TimeIndex(tt.t)
		if got != tt.want {
			t.Errorf("TimeIndex(%v): got %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestFloor(t *testing.T) {
	m := &coalmodel.Model{MinTime: 10}
	if got := m.Floor(5); got != 10 {
		t.Errorf("Floor(5): got %v, want 10", got)
	}
	if got := m.Floor(50); got != 50 {
		t.Errorf("Floor(50): got %v, want 50", got)
	}
}
