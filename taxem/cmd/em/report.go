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

import "fmt"

// NoNameFound is reported for taxids without names.
const NoNameFound = "no name found"

// DefaultTopN is the default number of reported genomes.
const DefaultTopN = 5

// NameLookup returns the name of a taxid.
type NameLookup interface {
	NameOf(taxid uint32) (string, bool)
}

// NameMap is a NameLookup backed by a map.
type NameMap map[uint32]string

// NameOf returns the name of taxid.
func (m NameMap) NameOf(taxid uint32) (string, bool) {
	name, ok := m[taxid]
	return name, ok && name != ""
}

// Names queries Primary first and then Secondary. Both could be nil.
type Names struct {
	Primary   NameLookup
	Secondary NameLookup
}

// NameOf returns the name of taxid.
func (n Names) NameOf(taxid uint32) (string, bool) {
	if n.Primary != nil {
		if name, ok := n.Primary.NameOf(taxid); ok {
			return name, true
		}
	}
	if n.Secondary != nil {
		return n.Secondary.NameOf(taxid)
	}
	return "", false
}

// ReportEntry is a row of the final report.
type ReportEntry struct {
	Rank  int // 1-based
	Name  string
	Taxid uint32
	Pi    float64
}

func (e ReportEntry) String() string {
	return fmt.Sprintf("%d\t%s\t%d\t%.6f", e.Rank, e.Name, e.Taxid, e.Pi)
}

// Report returns the top n genomes of a solution with their names.
// n <= 0 means all genomes.
func Report(sol *Solution, names NameLookup, n int) []ReportEntry {
	if n <= 0 || n > len(sol.Ranked) {
		n = len(sol.Ranked)
	}

	entries := make([]ReportEntry, n)
	var name string
	var ok bool
	for i, a := range sol.Ranked[:n] {
		name, ok = "", false
		if names != nil {
			name, ok = names.NameOf(a.Taxid)
		}
		if !ok {
			name = NoNameFound
		}
		entries[i] = ReportEntry{Rank: i + 1, Name: name, Taxid: a.Taxid, Pi: a.Pi}
	}
	return entries
}

// TopTaxids returns taxids of report entries.
func TopTaxids(entries []ReportEntry) []uint32 {
	taxids := make([]uint32, len(entries))
	for i, e := range entries {
		taxids[i] = e.Taxid
	}
	return taxids
}
