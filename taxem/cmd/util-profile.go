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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/marinaRupe/FER.BCsThesis/taxem/cmd/align"
	"github.com/marinaRupe/FER.BCsThesis/taxem/cmd/em"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/shenwei356/xopen"
	prettytable "github.com/tatsushid/go-prettytable"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
	"gopkg.in/yaml.v2"
)

// loadAlignments parses all alignment files into one Alignments,
// which is shared by both estimation rounds.
func loadAlignments(opt *Options, files []string, ropt *align.ReadOptions) *align.Alignments {
	alns := align.NewAlignments()

	var bar *mpb.Bar
	var pbs *mpb.Progress
	showBar := opt.Verbose && len(files) > 1
	if showBar {
		pbs = mpb.New(mpb.WithWidth(79))
		bar = pbs.AddBar(int64(len(files)),
			mpb.BarStyle("[=>-]<+"),
			mpb.PrependDecorators(
				decor.Name("parsing file: ", decor.WC{W: len("parsing") + 1, C: decor.DidentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
	}

	var bamFile bool
	var err error
	for _, file := range files {
		startTime := time.Now()
		if !showBar && (opt.Verbose || opt.Log2File) {
			log.Infof("  parsing file: %s", file)
		}

		bamFile, err = isBAMFile(file)
		checkError(errors.Wrap(err, file))

		if bamFile {
			err = align.ReadBAM(file, ropt, alns)
		} else {
			err = align.ReadSAM(file, ropt, alns)
		}
		checkError(err)

		if showBar {
			bar.Increment()
			bar.DecoratorEwmaUpdate(time.Since(startTime))
		}
	}
	if showBar {
		pbs.Wait()
	}

	return alns
}

// writeReport writes the top genomes in tab-delimited format or as a
// pretty table.
func writeReport(outfh *bufio.Writer, entries []em.ReportEntry, pretty bool) {
	if !pretty {
		outfh.WriteString("rank\tname\ttaxid\tabundance\n")
		for _, e := range entries {
			outfh.WriteString(e.String() + "\n")
		}
		return
	}

	columns := []prettytable.Column{
		{Header: "rank", AlignRight: true},
		{Header: "name"},
		{Header: "taxid", AlignRight: true},
		{Header: "abundance", AlignRight: true},
	}
	tbl, err := prettytable.NewTable(columns...)
	checkError(err)
	tbl.Separator = "  "

	for _, e := range entries {
		tbl.AddRow(e.Rank, e.Name, e.Taxid, fmt.Sprintf("%.6f", e.Pi))
	}
	outfh.Write(tbl.Bytes())
}

// writeBinning writes the most responsible genome of every read.
func writeBinning(file string, sampleID string, sol *em.Solution) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()

	fmt.Fprintf(outfh, "@Version:0.9.1\n@SampleID:%s\n@@SEQUENCEID\tTAXID\tPROB\n", sampleID)
	for _, a := range sol.Assignments {
		fmt.Fprintf(outfh, "%s\t%d\t%.6f\n", a.Read, a.Taxid, a.Prob)
	}
	return nil
}

// PhaseInfo summarizes one estimation round.
type PhaseInfo struct {
	Reads         int     `yaml:"reads"`
	UniqueReads   int     `yaml:"unique-reads"`
	Genomes       int     `yaml:"genomes"`
	Iterations    int     `yaml:"iterations"`
	Converged     bool    `yaml:"converged"`
	LogLikelihood float64 `yaml:"log-likelihood"`
}

// ProfileInfo is the summary of a profiling run.
type ProfileInfo struct {
	Version   string   `yaml:"version"`
	SampleID  string   `yaml:"sample-id,omitempty"`
	Files     []string `yaml:"files"`
	Score     string   `yaml:"score"`
	Epsilon   float64  `yaml:"epsilon"`
	Records   int      `yaml:"aligned-records"`
	Unaligned int      `yaml:"unaligned-records"`
	Skipped   int      `yaml:"skipped-records"`

	Phase1 *PhaseInfo `yaml:"round1"`
	Groups int        `yaml:"groups,omitempty"`
	Phase2 *PhaseInfo `yaml:"round2,omitempty"`

	Top []uint32 `yaml:"top-taxids"`
}

func newPhaseInfo(m *em.Model, sol *em.Solution) *PhaseInfo {
	if m == nil || sol == nil {
		return nil
	}
	info := &PhaseInfo{
		Reads:         len(m.Reads),
		Genomes:       len(m.Genomes),
		Iterations:    sol.Iterations,
		Converged:     sol.Converged,
		LogLikelihood: sol.LogLikelihood,
	}
	for _, y := range m.Y {
		if y == 1 {
			info.UniqueReads++
		}
	}
	return info
}

func (i *PhaseInfo) String() string {
	return fmt.Sprintf("%s reads (%s unique), %s genomes, %d iterations, log-likelihood: %f",
		humanize.Comma(int64(i.Reads)), humanize.Comma(int64(i.UniqueReads)),
		humanize.Comma(int64(i.Genomes)), i.Iterations, i.LogLikelihood)
}

// WriteToFile dumps ProfileInfo to file.
func (i ProfileInfo) WriteToFile(file string) (int, error) {
	data, err := yaml.Marshal(i)
	if err != nil {
		return 0, fmt.Errorf("fail to marshal profile info")
	}

	dir := filepath.Dir(file)
	dirExisted, err := pathutil.DirExists(dir)
	if err != nil {
		return 0, fmt.Errorf("fail to write profile info file: %s", file)
	}
	if !dirExisted {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return 0, fmt.Errorf("fail to write profile info file: %s", file)
		}
	}

	w, err := os.Create(file)
	if err != nil {
		return 0, fmt.Errorf("fail to write profile info file: %s", file)
	}
	defer w.Close()

	return w.Write(data)
}
