// Copyright © 2021 Marina Rupe
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package em

import (
	"math"
	"testing"
)

var rankedSolution = &Solution{Ranked: []Abundance{
	{Taxid: 1, Pi: 0.4},
	{Taxid: 2, Pi: 0.3},
	{Taxid: 3, Pi: 0.2},
	{Taxid: 4, Pi: 0.1},
}}

func TestRefine(t *testing.T) {
	// 1 and 2 are siblings, 4 has no parent
	parents := ParentMap{1: 10, 2: 10, 3: 20}
	groups := Groups(rankedSolution, parents)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, returned %d", len(groups))
	}
	if groups[0].Parent != 10 || len(groups[0].Members) != 2 || groups[0].Representative().Taxid != 1 {
		t.Errorf("unexpected group: %+v", groups[0])
	}

	allowed := Refine(rankedSolution, parents)
	if len(allowed) != len(groups) {
		t.Errorf("expected %d representatives, returned %d", len(groups), len(allowed))
	}
	for _, taxid := range []uint32{1, 3, 4} {
		if _, ok := allowed[taxid]; !ok {
			t.Errorf("%d should be kept", taxid)
		}
	}
	if _, ok := allowed[2]; ok {
		t.Errorf("2 should be removed")
	}
}

func TestRefineFlatTaxonomy(t *testing.T) {
	parents := ParentMap{1: 10, 2: 20, 3: 30, 4: 40}
	allowed := Refine(rankedSolution, parents)
	if len(allowed) != len(rankedSolution.Ranked) {
		t.Errorf("all genomes should be kept, returned %d", len(allowed))
	}
}

func TestRefineSingletons(t *testing.T) {
	// 1 is the root, 4 is missing, 3 takes 4 as its parent
	parents := ParentMap{1: 1, 2: 1, 3: 4}
	groups := Groups(rankedSolution, parents)
	if len(groups) != 4 {
		t.Errorf("expected 4 groups, returned %d", len(groups))
	}
	allowed := Refine(rankedSolution, parents)
	if len(allowed) != 4 {
		t.Errorf("all genomes should be kept, returned %d", len(allowed))
	}
}

func TestTwoPhase(t *testing.T) {
	reads := []testRead{
		{"r1", []uint32{1}, 60},
		{"r2", []uint32{2}, 60},
		{"r3", []uint32{2}, 60},
		{"r4", []uint32{2, 3}, 60},
		{"r5", []uint32{3, 1}, 60},
	}
	alns := newTestAlignments(reads)
	parents := ParentMap{1: 100, 2: 200, 3: 200}

	r, err := TwoPhase(alns, MapQScore, parents, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(r.Model1.Genomes) != 3 {
		t.Errorf("expected 3 genomes in round 1, returned %d", len(r.Model1.Genomes))
	}
	if r.Phase1.Pi(2) <= r.Phase1.Pi(3) {
		t.Errorf("genome 2 should be more abundant than 3 in round 1")
	}

	if len(r.Restriction) != 2 || len(r.Groups) != 2 {
		t.Fatalf("expected 2 groups, returned %d", len(r.Groups))
	}
	if _, ok := r.Restriction[3]; ok {
		t.Errorf("genome 3 should be removed")
	}

	if r.Phase2 == nil || r.Final() != r.Phase2 {
		t.Fatalf("round 2 expected")
	}
	if len(r.Model2.Reads) != 5 || len(r.Model2.Genomes) != 2 {
		t.Errorf("expected 5 reads and 2 genomes in round 2, returned %d and %d",
			len(r.Model2.Reads), len(r.Model2.Genomes))
	}
	for i, y := range r.Model2.Y {
		if y != 1 {
			t.Errorf("read %s should be unique in round 2", r.Model2.Reads[i].Name)
		}
	}
	if math.Abs(sumPi(r.Phase2)-1) > 1e-9 {
		t.Errorf("pi should sum up to 1, returned %f", sumPi(r.Phase2))
	}

	// round 2 starts from scratch
	m, err := NewModel(alns, MapQScore, r.Restriction)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	sol, err := Run(m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for i := range sol.Ranked {
		if sol.Ranked[i] != r.Phase2.Ranked[i] {
			t.Errorf("round 2 should not depend on round 1 parameters")
		}
	}
}

func TestTwoPhaseWithoutRefinement(t *testing.T) {
	alns := newTestAlignments(twoGenomeReads)

	r, err := TwoPhase(alns, MapQScore, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if r.Phase2 != nil || r.Final() != r.Phase1 || r.FinalModel() != r.Model1 {
		t.Errorf("round 2 should be skipped without parents")
	}

	r, err = TwoPhase(alns, MapQScore, ParentMap{1: 10, 2: 10}, &Options{Epsilon: 1e-8, MaxIterations: 100, NoRefine: true})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if r.Phase2 != nil {
		t.Errorf("round 2 should be skipped with NoRefine")
	}

	if _, err = TwoPhase(newTestAlignments(nil), MapQScore, nil, nil); !IsModelError(err) {
		t.Errorf("ModelError expected, returned %v", err)
	}
}
