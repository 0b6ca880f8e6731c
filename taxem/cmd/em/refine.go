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
	"github.com/marinaRupe/FER.BCsThesis/taxem/cmd/align"
	"github.com/pkg/errors"
)

// ParentLookup returns the parent taxid of a taxid.
type ParentLookup interface {
	ParentOf(taxid uint32) (uint32, bool)
}

// ParentMap is a ParentLookup backed by a child -> parent map.
type ParentMap map[uint32]uint32

// ParentOf returns the parent of taxid.
func (m ParentMap) ParentOf(taxid uint32) (uint32, bool) {
	parent, ok := m[taxid]
	return parent, ok
}

// Group holds genomes sharing the same parent taxon.
type Group struct {
	Parent  uint32
	Members []Abundance // in the order of the ranked solution
}

// Representative is the member with the highest abundance.
func (g *Group) Representative() Abundance {
	return g.Members[0]
}

// Groups groups genomes of a solution by their parents. Genomes without
// a parent, or being their own parent (the root), form singleton groups
// keyed by themselves. Groups are returned in the order of their
// representatives.
func Groups(sol *Solution, parents ParentLookup) []*Group {
	groups := make([]*Group, 0, len(sol.Ranked))
	byParent := make(map[uint32]*Group, len(sol.Ranked))

	var parent uint32
	var ok bool
	var g *Group
	for _, a := range sol.Ranked {
		parent, ok = parents.ParentOf(a.Taxid)
		if !ok || parent == a.Taxid {
			groups = append(groups, &Group{Parent: a.Taxid, Members: []Abundance{a}})
			continue
		}

		if g, ok = byParent[parent]; ok {
			g.Members = append(g.Members, a)
			continue
		}
		g = &Group{Parent: parent, Members: []Abundance{a}}
		byParent[parent] = g
		groups = append(groups, g)
	}
	return groups
}

// Refine keeps one representative genome per parent group, i.e., the one
// with the highest abundance in sol. The returned set restricts the
// candidates of the next round.
func Refine(sol *Solution, parents ParentLookup) map[uint32]struct{} {
	return representatives(Groups(sol, parents))
}

func representatives(groups []*Group) map[uint32]struct{} {
	allowed := make(map[uint32]struct{}, len(groups))
	for _, g := range groups {
		allowed[g.Representative().Taxid] = struct{}{}
	}
	return allowed
}

// Result contains results of both rounds.
type Result struct {
	Model1 *Model
	Phase1 *Solution

	Restriction map[uint32]struct{}
	Groups      []*Group

	Model2 *Model
	Phase2 *Solution
}

// Final returns the refined solution, or the first one if refinement
// was skipped.
func (r *Result) Final() *Solution {
	if r.Phase2 != nil {
		return r.Phase2
	}
	return r.Phase1
}

// FinalModel returns the model of the final solution.
func (r *Result) FinalModel() *Model {
	if r.Model2 != nil {
		return r.Model2
	}
	return r.Model1
}

// TwoPhase runs the estimation on all candidates, restricts candidates to
// one genome per parent taxon, and runs the estimation again with
// parameters reset. The refinement is skipped when parents is nil or
// opt.NoRefine is true.
func TwoPhase(alns *align.Alignments, score ScoreFunc, parents ParentLookup, opt *Options) (*Result, error) {
	if opt == nil {
		opt = &DefaultOptions
	}

	var err error
	r := &Result{}

	r.Model1, err = NewModel(alns, score, nil)
	if err != nil {
		return nil, errors.Wrap(err, "round 1")
	}
	r.Phase1, err = Run(r.Model1, opt)
	if err != nil {
		return nil, errors.Wrap(err, "round 1")
	}

	if parents == nil || opt.NoRefine {
		return r, nil
	}

	r.Groups = Groups(r.Phase1, parents)
	r.Restriction = representatives(r.Groups)

	r.Model2, err = NewModel(alns, score, r.Restriction)
	if err != nil {
		return nil, errors.Wrap(err, "round 2")
	}
	r.Phase2, err = Run(r.Model2, opt)
	if err != nil {
		return nil, errors.Wrap(err, "round 2")
	}
	return r, nil
}
