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

import "testing"

func TestReport(t *testing.T) {
	sol := &Solution{Ranked: []Abundance{
		{Taxid: 1, Pi: 0.3},
		{Taxid: 2, Pi: 0.2},
		{Taxid: 3, Pi: 0.2},
		{Taxid: 4, Pi: 0.1},
		{Taxid: 5, Pi: 0.1},
		{Taxid: 6, Pi: 0.05},
		{Taxid: 7, Pi: 0.05},
	}}
	names := Names{
		Primary:   NameMap{1: "Escherichia coli", 2: ""},
		Secondary: NameMap{2: "Staphylococcus aureus", 4: "Bacillus subtilis"},
	}

	entries := Report(sol, names, DefaultTopN)
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, returned %d", len(entries))
	}

	expected := []ReportEntry{
		{1, "Escherichia coli", 1, 0.3},
		{2, "Staphylococcus aureus", 2, 0.2},
		{3, NoNameFound, 3, 0.2},
		{4, "Bacillus subtilis", 4, 0.1},
		{5, NoNameFound, 5, 0.1},
	}
	for i, e := range entries {
		if e != expected[i] {
			t.Errorf("entry %d: expected %v, returned %v", i, expected[i], e)
		}
	}

	taxids := TopTaxids(entries)
	if len(taxids) != 5 || taxids[0] != 1 || taxids[4] != 5 {
		t.Errorf("unexpected top taxids: %v", taxids)
	}

	if entries = Report(sol, nil, 0); len(entries) != 7 || entries[6].Name != NoNameFound {
		t.Errorf("all entries without names expected, returned %v", entries)
	}

	if entries = Report(sol, names, 100); len(entries) != 7 {
		t.Errorf("expected 7 entries, returned %d", len(entries))
	}
}
