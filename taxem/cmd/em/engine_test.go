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

var mixedReads = []testRead{
	{"r1", []uint32{1}, 60},
	{"r2", []uint32{1, 2}, 50},
	{"r3", []uint32{2, 3}, 40},
	{"r4", []uint32{3}, 60},
	{"r5", []uint32{4}, 10},
	{"r6", []uint32{1, 4}, 20},
}

func sumPi(sol *Solution) float64 {
	var sum float64
	for _, a := range sol.Ranked {
		sum += a.Pi
	}
	return sum
}

func TestRunTwoGenomes(t *testing.T) {
	m, err := NewModel(newTestAlignments(twoGenomeReads), MapQScore, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	sol, err := Run(m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if !sol.Converged {
		t.Errorf("EM should converge")
	}
	if sol.Pi(1) <= sol.Pi(2) {
		t.Errorf("expected pi[1] > pi[2], returned %f and %f", sol.Pi(1), sol.Pi(2))
	}
	if sol.Ranked[0].Taxid != 1 {
		t.Errorf("genome 1 should be ranked first")
	}
	if math.Abs(sumPi(sol)-1) > 1e-9 {
		t.Errorf("pi should sum up to 1, returned %f", sumPi(sol))
	}
	if len(sol.Assignments) != 5 {
		t.Errorf("expected 5 read assignments, returned %d", len(sol.Assignments))
	}
}

func TestRunSingleGenome(t *testing.T) {
	m, err := NewModel(newTestAlignments([]testRead{{"r1", []uint32{42}, 17}}), MapQScore, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	sol, err := Run(m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if sol.Iterations != 1 || !sol.Converged {
		t.Errorf("expected convergence in 1 iteration, returned %d (%v)", sol.Iterations, sol.Converged)
	}
	if len(sol.Ranked) != 1 || sol.Ranked[0].Taxid != 42 || sol.Ranked[0].Pi != 1 {
		t.Errorf("expected pi = [1.0], returned %v", sol.Ranked)
	}
}

func TestRunSumToOne(t *testing.T) {
	for _, reads := range [][]testRead{twoGenomeReads, mixedReads} {
		m, err := NewModel(newTestAlignments(reads), MapQScore, nil)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		sol, err := Run(m, nil)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if math.Abs(sumPi(sol)-1) > 1e-9 {
			t.Errorf("pi should sum up to 1, returned %f", sumPi(sol))
		}
		for i := 1; i < len(sol.Ranked); i++ {
			if sol.Ranked[i].Pi > sol.Ranked[i-1].Pi {
				t.Errorf("result not sorted: %v", sol.Ranked)
			}
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	m, err := NewModel(newTestAlignments(mixedReads), MapQScore, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	sol1, err := Run(m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	sol2, err := Run(m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if sol1.Iterations != sol2.Iterations || sol1.LogLikelihood != sol2.LogLikelihood {
		t.Errorf("different runs: %d/%f vs %d/%f", sol1.Iterations, sol1.LogLikelihood, sol2.Iterations, sol2.LogLikelihood)
	}
	for i := range sol1.Ranked {
		if sol1.Ranked[i] != sol2.Ranked[i] {
			t.Errorf("different results at %d: %v vs %v", i, sol1.Ranked[i], sol2.Ranked[i])
		}
	}
}

func TestEStepGlobalNormalization(t *testing.T) {
	m, err := NewModel(newTestAlignments(mixedReads), MapQScore, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	nG := len(m.Genomes)
	pi := []float64{0.4, 0.3, 0.2, 0.1}
	delta := []float64{0.1, 0.2, 0.3, 0.4}
	h := make([][]float64, len(m.Reads))
	for i := range h {
		h[i] = make([]float64, nG)
	}

	total, err := eStep(m, pi, delta, h)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var sum, expected float64
	for i := range h {
		for j := range h[i] {
			sum += h[i][j]
			expected += weight(m, pi, delta, i, j)
		}
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("h should sum up to 1, returned %f", sum)
	}
	if math.Abs(total-expected) > 1e-12 {
		t.Errorf("expected total %f, returned %f", expected, total)
	}

	// rows are not normalized one by one
	var row float64
	for _, v := range h[0] {
		row += v
	}
	if math.Abs(row-1) < 1e-6 {
		t.Errorf("a row of h should not sum up to 1")
	}
}

func TestConvergenceAnyGenomeEarlyExit(t *testing.T) {
	pi := []float64{0.25, 0.25, 0.5}
	delta := []float64{0.5, 0.5, 0.5}

	// only genome 3 is stable, it is enough to stop
	newPi := []float64{0.1, 0.4, 0.5}
	newDelta := []float64{0.6, 0.4, 0.5}
	if !paramsConverged(pi, newPi, delta, newDelta, 1e-8) {
		t.Errorf("a single stable genome should stop the iteration")
	}

	newDelta = []float64{0.6, 0.4, 0.45}
	if paramsConverged(pi, newPi, delta, newDelta, 1e-8) {
		t.Errorf("no genome is stable")
	}

	// pi and delta have to be stable for the same genome
	newPi = []float64{0.25, 0.35, 0.4}
	newDelta = []float64{0.6, 0.5, 0.5}
	if paramsConverged(pi, newPi, delta, newDelta, 1e-8) {
		t.Errorf("no genome has both pi and delta stable")
	}

	// pi is compared after scaling to a sum of 1
	newPi = []float64{0.5, 0.5, 1}
	newDelta = []float64{0.5, 0.5, 0.5}
	if !paramsConverged(pi, newPi, delta, newDelta, 1e-8) {
		t.Errorf("proportional pi should be stable")
	}
}

func TestRunMaxIterations(t *testing.T) {
	m, err := NewModel(newTestAlignments(twoGenomeReads), MapQScore, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	sol, err := Run(m, &Options{Epsilon: 1e-8, MaxIterations: 1})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if sol.Iterations != 1 || sol.Converged {
		t.Errorf("expected to stop at 1 iteration without convergence, returned %d (%v)", sol.Iterations, sol.Converged)
	}
	if math.Abs(sumPi(sol)-1) > 1e-9 {
		t.Errorf("pi should sum up to 1, returned %f", sumPi(sol))
	}
}

func TestRunErrors(t *testing.T) {
	if _, err := Run(&Model{}, nil); !IsModelError(err) {
		t.Errorf("ModelError expected, returned %v", err)
	}

	for _, v := range []float64{0, math.NaN()} {
		m := &Model{
			Reads:   []*Read{{Name: "r1", Genomes: []int{0}, Score: 1}},
			Genomes: []*Genome{{Taxid: 1, Freq: 1, Unique: 1, A: 2, B: 1}},
			Y:       []float64{1},
			Q:       NewScoreMatrix(1),
		}
		m.Q.Set(0, 0, v)
		if _, err := Run(m, nil); !IsNumericalError(err) {
			t.Errorf("NumericalError expected for Q = %v, returned %v", v, err)
		}
	}
}
