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

package align

import (
	"github.com/biogo/hts/sam"
	"github.com/zeebo/wyhash"
)

// Hit holds all alignments of a read.
type Hit struct {
	Name   string
	Taxids []uint32 // distinct candidate taxids in order of appearance

	MapQ   byte        // the highest MAPQ of all records
	Cigars []sam.Cigar // CIGARs of all aligned records
}

// Alignments is the parsed alignment source. Reads keep the order of
// their first appearance, so models built from it are reproducible.
// It is not modified once loading finished and can be shared
// by all estimation rounds.
type Alignments struct {
	hits  []*Hit
	index map[uint64]int
	extra map[string]int // read names with colliding hashes

	Records   int // aligned records
	Unaligned int // unaligned records
}

// NewAlignments returns an empty Alignments.
func NewAlignments() *Alignments {
	return &Alignments{
		hits:  make([]*Hit, 0, 1024),
		index: make(map[uint64]int, 1024),
	}
}

// Add merges a record into the candidate set of its read.
// Unaligned records only increase the counter.
func (a *Alignments) Add(r *Record) {
	if r.Unaligned {
		a.Unaligned++
		return
	}
	a.Records++

	hit := a.get(r.Read)
	for _, taxid := range r.Taxids {
		hit.Taxids = appendUniq(hit.Taxids, taxid)
	}
	if r.MapQ > hit.MapQ {
		hit.MapQ = r.MapQ
	}
	if len(r.Cigar) > 0 {
		hit.Cigars = append(hit.Cigars, r.Cigar)
	}
}

func (a *Alignments) get(name string) *Hit {
	h := wyhash.HashString(name, 1)
	if i, ok := a.index[h]; ok {
		if a.hits[i].Name == name {
			return a.hits[i]
		}
		if a.extra == nil {
			a.extra = make(map[string]int, 8)
		}
		if i, ok = a.extra[name]; ok {
			return a.hits[i]
		}
		a.extra[name] = len(a.hits)
	} else {
		a.index[h] = len(a.hits)
	}

	hit := &Hit{Name: name, Taxids: make([]uint32, 0, 4)}
	a.hits = append(a.hits, hit)
	return hit
}

// Hits returns reads with at least one aligned record.
func (a *Alignments) Hits() []*Hit { return a.hits }

// Len returns the number of aligned reads.
func (a *Alignments) Len() int { return len(a.hits) }
