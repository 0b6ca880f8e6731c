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

// Package align parses alignments of reads against the reduced marker
// database and merges them into per-read candidate sets.
package align

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
)

// Unaligned is the reference name of a read without any alignment.
const Unaligned = "*"

// flagUnmapped is bit 0x4 of the SAM FLAG column.
const flagUnmapped = 0x4

// minimal number of mandatory SAM columns
const numSAMFields = 11

// Record is a single alignment line.
type Record struct {
	Read      string
	Ref       string
	Taxids    []uint32
	MapQ      byte
	Cigar     sam.Cigar
	Unaligned bool
}

// ParseError is returned for a malformed alignment line,
// which should be skipped by the caller.
type ParseError struct {
	Line string
	Msg  string
}

func (e *ParseError) Error() string {
	line := e.Line
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	return fmt.Sprintf("invalid alignment record (%s): %s", e.Msg, line)
}

// ParseReference extracts taxids from a reference name of the reduced
// database, e.g., gi|15644634|ti|1280,1282. The taxids field may end with
// another '|' or the end of the name. If the name does not carry taxids,
// taxidMap (optional) is queried with the whole name and its first
// whitespace-delimited token.
func ParseReference(ref string, taxidMap map[string]uint32) ([]uint32, error) {
	i := strings.Index(ref, "|ti|")
	if i < 0 {
		if strings.HasPrefix(ref, "ti|") {
			i = -1
		} else {
			return lookupTaxid(ref, taxidMap)
		}
	}
	s := ref[i+4:]
	if j := strings.IndexByte(s, '|'); j >= 0 {
		s = s[:j]
	}
	if s == "" {
		return nil, fmt.Errorf("no taxids in reference: %s", ref)
	}

	taxids := make([]uint32, 0, strings.Count(s, ",")+1)
	var taxid uint64
	var err error
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		taxid, err = strconv.ParseUint(t, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid taxid in reference %s: %s", ref, t)
		}
		taxids = appendUniq(taxids, uint32(taxid))
	}
	if len(taxids) == 0 {
		return nil, fmt.Errorf("no taxids in reference: %s", ref)
	}
	return taxids, nil
}

func lookupTaxid(ref string, taxidMap map[string]uint32) ([]uint32, error) {
	if taxidMap != nil {
		if taxid, ok := taxidMap[ref]; ok {
			return []uint32{taxid}, nil
		}
		if i := strings.IndexAny(ref, " \t"); i > 0 {
			if taxid, ok := taxidMap[ref[:i]]; ok {
				return []uint32{taxid}, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown taxid for reference: %s", ref)
}

func appendUniq(taxids []uint32, taxid uint32) []uint32 {
	for _, t := range taxids {
		if t == taxid {
			return taxids
		}
	}
	return append(taxids, taxid)
}

// ParseSAMLine parses one line of a SAM file. Header and blank lines
// return nil without error.
func ParseSAMLine(line string, taxidMap map[string]uint32) (*Record, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || line[0] == '@' {
		return nil, nil
	}

	items := make([]string, numSAMFields)
	stringSplitNByByte(line, '\t', numSAMFields, &items)
	if len(items) < numSAMFields {
		return nil, &ParseError{Line: line, Msg: fmt.Sprintf("%d columns", len(items))}
	}

	flag, err := strconv.ParseUint(items[1], 10, 16)
	if err != nil {
		return nil, &ParseError{Line: line, Msg: "bad FLAG " + items[1]}
	}

	r := &Record{Read: items[0], Ref: items[2]}
	if r.Ref == Unaligned || flag&flagUnmapped > 0 {
		r.Unaligned = true
		return r, nil
	}

	mapq, err := strconv.ParseUint(items[4], 10, 8)
	if err != nil {
		return nil, &ParseError{Line: line, Msg: "bad MAPQ " + items[4]}
	}
	r.MapQ = byte(mapq)

	if items[5] != Unaligned {
		r.Cigar, err = sam.ParseCigar([]byte(items[5]))
		if err != nil {
			return nil, &ParseError{Line: line, Msg: "bad CIGAR " + items[5]}
		}
	}

	r.Taxids, err = ParseReference(r.Ref, taxidMap)
	if err != nil {
		return nil, &ParseError{Line: line, Msg: err.Error()}
	}
	return r, nil
}

// MatchRatio is the proportion of match operations (M, =) among all
// operations of the CIGAR. An empty CIGAR returns 0.
func MatchRatio(cigar sam.Cigar) float64 {
	var match, total int
	for _, op := range cigar {
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual:
			match += op.Len()
		}
		total += op.Len()
	}
	if total == 0 {
		return 0
	}
	return float64(match) / float64(total)
}

func stringSplitNByByte(s string, sep byte, n int, a *[]string) {
	if a == nil {
		tmp := make([]string, n)
		a = &tmp
	}

	n--
	i := 0
	for i < n {
		m := strings.IndexByte(s, sep)
		if m < 0 {
			break
		}
		(*a)[i] = s[:m]
		s = s[m+1:]
		i++
	}
	(*a)[i] = s

	(*a) = (*a)[:i+1]
}
