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

package cmd

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/util/cliutil"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// Options contains the global flags
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool

	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",

		CompressionLevel: -1,
	}
}

// readTaxidMaps reads tabular two-column files mapping reference IDs to TaxIds.
func readTaxidMaps(files []string) (map[string]uint32, error) {
	taxidMap := make(map[string]uint32, 1024)
	var taxid uint64
	for _, file := range files {
		kvs, err := cliutil.ReadKVs(file, false)
		if err != nil {
			return nil, errors.Wrap(err, file)
		}
		for k, v := range kvs {
			taxid, err = strconv.ParseUint(strings.TrimSpace(v), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid TaxId in %s: %s", file, v)
			}
			taxidMap[k] = uint32(taxid)
		}
	}
	return taxidMap, nil
}

// readNameMaps reads tabular two-column files mapping TaxIds to names.
func readNameMaps(files []string) (map[uint32]string, error) {
	names := make(map[uint32]string, 1024)
	var taxid uint64
	for _, file := range files {
		kvs, err := cliutil.ReadKVs(file, false)
		if err != nil {
			return nil, errors.Wrap(err, file)
		}
		for k, v := range kvs {
			taxid, err = strconv.ParseUint(strings.TrimSpace(k), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid TaxId in %s: %s", file, k)
			}
			names[uint32(taxid)] = v
		}
	}
	return names, nil
}

func parseTaxids(items []string) ([]uint32, error) {
	taxids := make([]uint32, 0, len(items))
	var taxid uint64
	var err error
	for _, item := range items {
		for _, s := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			taxid, err = strconv.ParseUint(s, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid TaxId: %s", s)
			}
			taxids = append(taxids, uint32(taxid))
		}
	}
	return taxids, nil
}
