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
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts"
	"gonum.org/v1/gonum/floats"
)

// Options contains parameters of the estimation.
type Options struct {
	Epsilon       float64 // convergence threshold
	MaxIterations int     // safety cap for non-convergent inputs

	NoRefine bool // skip the taxonomy-group refinement round
}

// DefaultOptions is used when nil options are given.
var DefaultOptions = Options{
	Epsilon:       1e-8,
	MaxIterations: 1000,
}

// Abundance is the estimated abundance of a genome.
type Abundance struct {
	Taxid uint32
	Pi    float64
}

func (a Abundance) String() string {
	return fmt.Sprintf("%d\t%.6f", a.Taxid, a.Pi)
}

// Abundances are sorted by Pi in descending order, ties by taxid.
type Abundances []Abundance

func (s Abundances) Len() int { return len(s) }
func (s Abundances) Less(i, j int) bool {
	if s[i].Pi > s[j].Pi {
		return true
	}
	if s[i].Pi < s[j].Pi {
		return false
	}
	return s[i].Taxid < s[j].Taxid
}
func (s Abundances) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// Assignment is the most responsible genome of a read.
type Assignment struct {
	Read  string
	Taxid uint32
	Prob  float64 // share of the read's responsibility
}

// Solution is the result of an estimation round.
type Solution struct {
	Ranked []Abundance // pi sums up to 1

	Delta         map[uint32]float64
	Assignments   []Assignment
	Iterations    int
	LogLikelihood float64
	Converged     bool
}

// Pi returns the abundance of a taxid, 0 for absent ones.
func (s *Solution) Pi(taxid uint32) float64 {
	for _, a := range s.Ranked {
		if a.Taxid == taxid {
			return a.Pi
		}
	}
	return 0
}

// Run estimates genome abundances of the model.
// pi and delta start from 1/|genomes| and are iterated until, for any
// genome, both changes are below epsilon, or the log-likelihood changes
// less than epsilon.
func Run(m *Model, opt *Options) (*Solution, error) {
	if opt == nil {
		opt = &DefaultOptions
	}
	if m == nil || len(m.Reads) == 0 || len(m.Genomes) == 0 {
		return nil, errors.Wrap(ErrModel, "no reads or genomes for estimation")
	}

	nG := len(m.Genomes)
	pi := make([]float64, nG)
	delta := make([]float64, nG)
	for j := range pi {
		pi[j] = 1 / float64(nG)
		delta[j] = 1 / float64(nG)
	}

	h := make([][]float64, len(m.Reads))
	for i := range h {
		h[i] = make([]float64, nG)
	}

	var total, ll, llPrev float64
	var newPi, newDelta []float64
	var err error
	var iter int
	var converged bool
	for {
		iter++

		total, err = eStep(m, pi, delta, h)
		if err != nil {
			return nil, errors.Wrapf(err, "iteration %d", iter)
		}

		newPi, newDelta = mStep(m, h, total)

		ll, err = logLikelihood(m, pi, delta)
		if err != nil {
			return nil, errors.Wrapf(err, "iteration %d", iter)
		}

		converged = paramsConverged(pi, newPi, delta, newDelta, opt.Epsilon) ||
			(iter > 1 && math.Abs(ll-llPrev) < opt.Epsilon)

		pi, delta = newPi, newDelta
		llPrev = ll

		if converged || (opt.MaxIterations > 0 && iter >= opt.MaxIterations) {
			break
		}
	}

	sum := floats.Sum(pi)
	if !(sum > 0) {
		return nil, errors.Wrapf(ErrNumerical, "sum of abundances: %v", sum)
	}
	for j := range pi {
		pi[j] /= sum
	}

	sol := &Solution{
		Ranked:        make([]Abundance, nG),
		Delta:         make(map[uint32]float64, nG),
		Assignments:   assign(m, h),
		Iterations:    iter,
		LogLikelihood: ll,
		Converged:     converged,
	}
	for j, g := range m.Genomes {
		sol.Ranked[j] = Abundance{Taxid: g.Taxid, Pi: pi[j]}
		sol.Delta[g.Taxid] = delta[j]
	}
	sorts.Quicksort(Abundances(sol.Ranked))

	return sol, nil
}

// eStep fills h with pi[j] * delta[j]^(1-y[i]) * Q[i][j] divided by the sum
// of the whole matrix, and returns the sum.
func eStep(m *Model, pi, delta []float64, h [][]float64) (float64, error) {
	var total float64
	var row []float64
	for i := range m.Reads {
		row = h[i]
		for j := range m.Genomes {
			row[j] = weight(m, pi, delta, i, j)
			total += row[j]
		}
	}

	if !(total > 0) || math.IsInf(total, 0) {
		return total, errors.Wrapf(ErrNumerical, "sum of responsibilities: %v", total)
	}

	for _, row = range h {
		floats.Scale(1/total, row)
	}
	return total, nil
}

func weight(m *Model, pi, delta []float64, i, j int) float64 {
	if m.Y[i] == 1 {
		return pi[j] * m.Q.Get(i, j)
	}
	return pi[j] * delta[j] * m.Q.Get(i, j)
}

// mStep computes new pi and delta, using prior pseudocounts a and b.
// total is the sum from the E-step, not one per read.
func mStep(m *Model, h [][]float64, total float64) ([]float64, []float64) {
	nG := len(m.Genomes)
	s := make([]float64, nG)  // sum of responsibilities
	s2 := make([]float64, nG) // sum of responsibilities of multi-mapped reads
	var u float64             // number of multi-mapped reads
	var amb float64
	for i, row := range h {
		amb = 1 - m.Y[i]
		u += amb
		for j, v := range row {
			s[j] += v
			s2[j] += v * amb
		}
	}

	a, b := m.A(), m.B()
	sumA, sumB := floats.Sum(a), floats.Sum(b)

	pi := make([]float64, nG)
	delta := make([]float64, nG)
	for j := 0; j < nG; j++ {
		pi[j] = (s[j] + a[j]) / (total + sumA)
		delta[j] = (s2[j] + b[j]) / (u + sumB)
	}
	return pi, delta
}

func logLikelihood(m *Model, pi, delta []float64) (float64, error) {
	var ll, p float64
	for i, r := range m.Reads {
		p = 0
		for j := range m.Genomes {
			p += weight(m, pi, delta, i, j)
		}
		if !(p > 0) {
			return 0, errors.Wrapf(ErrNumerical, "likelihood of read %s: %v", r.Name, p)
		}
		ll += math.Log(p)
	}
	return ll, nil
}

// paramsConverged returns true as soon as a single genome has both pi
// and delta changed less than epsilon. It does not require all genomes
// to be stable, the first stable genome in model order stops the
// iteration. pi is compared after scaling to a sum of 1.
func paramsConverged(pi, newPi, delta, newDelta []float64, epsilon float64) bool {
	sum, newSum := floats.Sum(pi), floats.Sum(newPi)
	for j := range pi {
		if math.Abs(newPi[j]/newSum-pi[j]/sum) < epsilon &&
			math.Abs(newDelta[j]-delta[j]) < epsilon {
			return true
		}
	}
	return false
}

// assign picks the most responsible genome of every read, from h of the
// last E-step.
func assign(m *Model, h [][]float64) []Assignment {
	assignments := make([]Assignment, len(m.Reads))
	var best, sum float64
	var jBest int
	for i, row := range h {
		best, jBest, sum = -1, 0, 0
		for j, v := range row {
			sum += v
			if v > best {
				best, jBest = v, j
			}
		}
		assignments[i] = Assignment{
			Read:  m.Reads[i].Name,
			Taxid: m.Genomes[jBest].Taxid,
			Prob:  best / sum,
		}
	}
	return assignments
}
