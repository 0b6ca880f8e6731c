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
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
)

// ReadOptions controls parsing of alignment files.
type ReadOptions struct {
	Threads   int // number of parsing goroutines
	ChunkSize int // lines per chunk

	TaxidMap map[string]uint32 // optional, for references without taxids

	// OnError is called for every skipped record, could be nil.
	OnError func(err error)
}

// DefaultReadOptions is used when nil options are given.
var DefaultReadOptions = ReadOptions{Threads: 4, ChunkSize: 5000}

// ReadSAM parses a plain or compressed SAM file and adds its records into
// alns. Malformed lines are skipped and reported via OnError.
func ReadSAM(file string, opt *ReadOptions, alns *Alignments) error {
	if opt == nil {
		opt = &DefaultReadOptions
	}

	fn := func(line string) (interface{}, bool, error) {
		r, err := ParseSAMLine(line, opt.TaxidMap)
		if err != nil {
			return err, true, nil
		}
		if r == nil {
			return nil, false, nil
		}
		return r, true, nil
	}

	reader, err := breader.NewBufferedReader(file, opt.Threads, opt.ChunkSize, fn)
	if err != nil {
		return errors.Wrapf(err, "fail to read %s", file)
	}

	var data interface{}
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return errors.Wrapf(chunk.Err, "fail to read %s", file)
		}

		for _, data = range chunk.Data {
			switch v := data.(type) {
			case *Record:
				alns.Add(v)
			case error:
				if opt.OnError != nil {
					opt.OnError(v)
				}
			}
		}
	}
	return nil
}

// ReadBAM parses a BAM file and adds its records into alns.
func ReadBAM(file string, opt *ReadOptions, alns *Alignments) error {
	if opt == nil {
		opt = &DefaultReadOptions
	}

	fh, err := os.Open(file)
	if err != nil {
		return errors.Wrapf(err, "fail to read %s", file)
	}
	defer fh.Close()

	br, err := bam.NewReader(fh, opt.Threads)
	if err != nil {
		return errors.Wrapf(err, "fail to read bam file %s", file)
	}
	defer br.Close()

	var rec *sam.Record
	var r *Record
	for {
		rec, err = br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "fail to read bam file %s", file)
		}

		r, err = RecordFromSAM(rec, opt.TaxidMap)
		if err != nil {
			if opt.OnError != nil {
				opt.OnError(err)
			}
			continue
		}
		alns.Add(r)
	}
	return nil
}

// RecordFromSAM converts a decoded sam.Record.
func RecordFromSAM(rec *sam.Record, taxidMap map[string]uint32) (*Record, error) {
	r := &Record{Read: rec.Name}
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || rec.Ref.Name() == Unaligned {
		r.Unaligned = true
		return r, nil
	}

	r.Ref = rec.Ref.Name()
	r.MapQ = rec.MapQ
	r.Cigar = rec.Cigar

	var err error
	r.Taxids, err = ParseReference(r.Ref, taxidMap)
	if err != nil {
		return nil, &ParseError{Line: rec.Name + "\t" + r.Ref, Msg: err.Error()}
	}
	return r, nil
}
