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

// Package em reassigns multi-mapped reads to their most probable genomes
// and estimates genome abundances with a two-round EM procedure.
package em

import (
	"math"

	"github.com/marinaRupe/FER.BCsThesis/taxem/cmd/align"
	"github.com/pkg/errors"
)

// ScoreFunc computes the alignment quality of a read, shared by all its
// candidate genomes. It must return a non-negative real.
type ScoreFunc func(hit *align.Hit) float64

// MapQScore uses the highest mapping quality of the read.
func MapQScore(hit *align.Hit) float64 {
	return float64(hit.MapQ)
}

// MatchRatioScore uses the best match ratio of all CIGARs of the read.
func MatchRatioScore(hit *align.Hit) float64 {
	var best, r float64
	for _, cigar := range hit.Cigars {
		r = align.MatchRatio(cigar)
		if r > best {
			best = r
		}
	}
	return best
}

// Read is a read in the model.
type Read struct {
	Name    string
	Genomes []int // indexes of candidate genomes
	Score   float64
}

// Genome is a candidate genome, i.e., a taxid.
type Genome struct {
	Taxid uint32

	Freq      float64 // number of reads naming it as a candidate
	Unique    float64 // number of uniquely mapped reads
	NonUnique float64 // number of multi-mapped reads

	A float64 // Freq + Unique
	B float64 // Freq + NonUnique
}

// ScoreMatrix stores exp(score/maxScore) of observed (read, genome) pairs.
// Pairs without an alignment are not zero but take the neutral default
// exp(0/maxScore) = 1.
type ScoreMatrix struct {
	rows     []map[int]float64
	fallback float64
}

// NewScoreMatrix creates a matrix of n reads.
func NewScoreMatrix(n int) *ScoreMatrix {
	return &ScoreMatrix{rows: make([]map[int]float64, n), fallback: 1}
}

// Set sets the value of read i and genome j.
func (q *ScoreMatrix) Set(i, j int, v float64) {
	if q.rows[i] == nil {
		q.rows[i] = make(map[int]float64, 4)
	}
	q.rows[i][j] = v
}

// Get returns the value of read i and genome j.
func (q *ScoreMatrix) Get(i, j int) float64 {
	if v, ok := q.rows[i][j]; ok {
		return v
	}
	return q.fallback
}

// Observed tells whether read i was aligned to genome j.
func (q *ScoreMatrix) Observed(i, j int) bool {
	_, ok := q.rows[i][j]
	return ok
}

// Model is everything one estimation round needs.
// It is built once per round and never modified.
type Model struct {
	Reads   []*Read
	Genomes []*Genome
	Q       *ScoreMatrix
	Y       []float64 // 1 for uniquely mapped reads, 0 for the others

	MaxScore float64
}

// A returns the prior pseudocounts a of all genomes.
func (m *Model) A() []float64 {
	a := make([]float64, len(m.Genomes))
	for j, g := range m.Genomes {
		a[j] = g.A
	}
	return a
}

// B returns the prior pseudocounts b of all genomes.
func (m *Model) B() []float64 {
	b := make([]float64, len(m.Genomes))
	for j, g := range m.Genomes {
		b[j] = g.B
	}
	return b
}

// Taxids returns taxids of all genomes in model order.
func (m *Model) Taxids() []uint32 {
	taxids := make([]uint32, len(m.Genomes))
	for j, g := range m.Genomes {
		taxids[j] = g.Taxid
	}
	return taxids
}

// NewModel builds the model from parsed alignments.
// If allowed is not nil, candidates of every read are restricted to it,
// and reads left with no candidate are dropped.
// A genome is in the model only if it is a candidate of at least one read.
func NewModel(alns *align.Alignments, score ScoreFunc, allowed map[uint32]struct{}) (*Model, error) {
	if score == nil {
		score = MatchRatioScore
	}

	hits := alns.Hits()
	m := &Model{
		Reads:   make([]*Read, 0, len(hits)),
		Genomes: make([]*Genome, 0, 128),
		Y:       make([]float64, 0, len(hits)),
	}

	idx := make(map[uint32]int, 128)
	var restrict = allowed != nil
	var ok bool
	var j int
	var s float64
	for _, hit := range hits {
		genomes := make([]int, 0, len(hit.Taxids))
		for _, taxid := range hit.Taxids {
			if restrict {
				if _, ok = allowed[taxid]; !ok {
					continue
				}
			}
			if j, ok = idx[taxid]; !ok {
				j = len(m.Genomes)
				idx[taxid] = j
				m.Genomes = append(m.Genomes, &Genome{Taxid: taxid})
			}
			genomes = append(genomes, j)
		}
		if len(genomes) == 0 {
			continue
		}

		s = score(hit)
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.Wrapf(ErrNumerical, "invalid score of read %s: %v", hit.Name, s)
		}
		if s > m.MaxScore {
			m.MaxScore = s
		}

		m.Reads = append(m.Reads, &Read{Name: hit.Name, Genomes: genomes, Score: s})
		if len(genomes) == 1 {
			m.Y = append(m.Y, 1)
		} else {
			m.Y = append(m.Y, 0)
		}
	}

	if len(m.Reads) == 0 || len(m.Genomes) == 0 {
		return nil, errors.Wrapf(ErrModel, "%d reads and %d genomes left", len(m.Reads), len(m.Genomes))
	}
	if m.MaxScore == 0 {
		return nil, errors.Wrap(ErrNumerical, "all reads have a score of zero")
	}

	m.Q = NewScoreMatrix(len(m.Reads))
	m.Q.fallback = math.Exp(0 / m.MaxScore)
	for i, r := range m.Reads {
		for _, j = range r.Genomes {
			m.Q.Set(i, j, math.Exp(r.Score/m.MaxScore))

			g := m.Genomes[j]
			g.Freq++
			if m.Y[i] == 1 {
				g.Unique++
			} else {
				g.NonUnique++
			}
		}
	}
	for _, g := range m.Genomes {
		g.A = g.Freq + g.Unique
		g.B = g.Freq + g.NonUnique
	}

	return m, nil
}
