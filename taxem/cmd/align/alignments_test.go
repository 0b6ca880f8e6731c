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
	"os"
	"path/filepath"
	"testing"
)

func TestAlignmentsMerge(t *testing.T) {
	alns := NewAlignments()
	alns.Add(&Record{Read: "r1", Taxids: []uint32{1, 2}, MapQ: 10})
	alns.Add(&Record{Read: "r2", Taxids: []uint32{3}, MapQ: 5})
	alns.Add(&Record{Read: "r1", Taxids: []uint32{2, 4}, MapQ: 30})
	alns.Add(&Record{Read: "r3", Unaligned: true})

	if alns.Len() != 2 {
		t.Fatalf("expected 2 reads, returned %d", alns.Len())
	}
	if alns.Records != 3 || alns.Unaligned != 1 {
		t.Errorf("unexpected counts: %d aligned, %d unaligned", alns.Records, alns.Unaligned)
	}

	hit := alns.Hits()[0]
	if hit.Name != "r1" || !equalTaxids(hit.Taxids, []uint32{1, 2, 4}) {
		t.Errorf("unexpected merged hit: %+v", hit)
	}
	if hit.MapQ != 30 {
		t.Errorf("expected the highest MAPQ 30, returned %d", hit.MapQ)
	}
}

func TestReadSAM(t *testing.T) {
	data := `@HD	VN:1.0
@SQ	SN:gi|1|ti|562	LN:100
r1	0	gi|1|ti|562	1	60	10M	*	0	0	ACGT	IIII
r2	0	gi|2|ti|562,1280	1	60	5M5S	*	0	0	ACGT	IIII
r3	4	*	0	0	*	*	0	0	ACGT	IIII
bad	0	gi|2|ti|562
r2	256	gi|3|ti|1282	1	20	10M	*	0	0	ACGT	IIII
`
	file := filepath.Join(t.TempDir(), "test.sam")
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	var nErr int
	opt := &ReadOptions{Threads: 2, ChunkSize: 2, OnError: func(err error) { nErr++ }}
	alns := NewAlignments()
	if err := ReadSAM(file, opt, alns); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if nErr != 1 {
		t.Errorf("expected 1 skipped record, returned %d", nErr)
	}
	if alns.Len() != 2 || alns.Unaligned != 1 {
		t.Fatalf("unexpected alignments: %d reads, %d unaligned", alns.Len(), alns.Unaligned)
	}
	if hit := alns.Hits()[1]; hit.Name != "r2" || !equalTaxids(hit.Taxids, []uint32{562, 1280, 1282}) || len(hit.Cigars) != 2 {
		t.Errorf("unexpected hit: %+v", hit)
	}
}
