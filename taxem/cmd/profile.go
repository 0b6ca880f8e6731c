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
	"os"
	"strings"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/marinaRupe/FER.BCsThesis/taxem/cmd/align"
	"github.com/marinaRupe/FER.BCsThesis/taxem/cmd/em"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Reassign multi-mapped reads and estimate genome abundances",
	Long: `Reassign multi-mapped reads and estimate genome abundances

Input:
  SAM/BAM files of reads aligned against the reduced marker database,
  plain or gzip/xz/zstd-compressed SAM files are detected automatically.
  Reference names carry the candidate TaxIds of a marker, e.g.,
      gi|15644634|ti|1280,1282
  References without TaxIds can be mapped via -T/--taxid-map.

Methods:
  1. Every read is a candidate of the genomes it aligns to. The
     alignment quality of a read is the match ratio of its CIGAR
     (--score match-ratio) or the mapping quality (--score mapq).
  2. Round 1: genome abundances (pi) and down-weighting factors of
     multi-mapped reads (delta) are estimated with EM, using
     prior pseudocounts from unique and multi-mapped reads.
  3. Genomes of the same parent taxon are grouped, and only the most
     abundant genome of each group is kept.
  4. Round 2: EM is restarted on the restricted candidates.
     Use --no-refine to skip steps 3 and 4.

Output format:
  Tab-delimited format with 4 columns:

    1. rank,       Rank of the genome
    2. name,       Taxonomic name, "no name found" for unknown TaxIds
    3. taxid,      TaxId of the genome
    4. abundance,  Relative abundance

Examples:
  1. Top 5 genomes:
       taxem profile -X taxdump/ sample.sam
  2. All genomes, with a summary and read binning:
       taxem profile -X taxdump/ -n 0 -s sample sample.bam \
           -o sample.profile --stats-file sample.yml -B sample.binning.gz
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		var err error

		outFile := getFlagString(cmd, "out-file")
		taxdumpDir := expandPath(getFlagString(cmd, "taxdump"))
		taxidMapFiles := getFlagStringSlice(cmd, "taxid-map")
		nameMapFiles := getFlagStringSlice(cmd, "name-map")
		sampleID := getFlagString(cmd, "sample-id")
		topN := getFlagNonNegativeInt(cmd, "top")
		pretty := getFlagBool(cmd, "pretty")
		statsFile := getFlagString(cmd, "stats-file")
		binningFile := getFlagString(cmd, "binning-result")
		chunkSize := getFlagPositiveInt(cmd, "line-chunk-size")

		emOpt := &em.Options{
			Epsilon:       getFlagPositiveFloat64(cmd, "epsilon"),
			MaxIterations: getFlagNonNegativeInt(cmd, "max-iter"),
			NoRefine:      getFlagBool(cmd, "no-refine"),
		}

		scoreMethod := strings.ToLower(getFlagString(cmd, "score"))
		var score em.ScoreFunc
		switch scoreMethod {
		case "match-ratio":
			score = em.MatchRatioScore
		case "mapq":
			score = em.MapQScore
		default:
			checkError(fmt.Errorf("invalid value of --score: %s, available: match-ratio, mapq", scoreMethod))
		}

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if opt.Verbose || opt.Log2File {
			if len(files) == 1 && isStdin(files[0]) {
				log.Info("no files given, reading from stdin")
			} else {
				log.Infof("%d input file(s) given", len(files))
			}
		}

		// ---------------------------------------------------------------
		// taxonomy data

		var taxidMap map[string]uint32
		if len(taxidMapFiles) > 0 {
			taxidMap, err = readTaxidMaps(taxidMapFiles)
			checkError(err)
			if opt.Verbose || opt.Log2File {
				log.Infof("%s pairs of reference-TaxId mapping loaded", humanize.Comma(int64(len(taxidMap))))
			}
		}

		var names em.Names
		var parents em.ParentLookup
		if taxdumpDir != "" {
			lookup := taxonomyLookup{t: loadTaxonomy(opt, taxdumpDir)}
			names.Primary = lookup
			parents = lookup
		} else if !emOpt.NoRefine {
			log.Warningf("no taxonomy data given (-X/--taxdump), refinement by taxonomy groups is skipped")
		}
		if len(nameMapFiles) > 0 {
			nameMap, err := readNameMaps(nameMapFiles)
			checkError(err)
			names.Secondary = em.NameMap(nameMap)
		}

		// ---------------------------------------------------------------
		// alignments

		if opt.Verbose || opt.Log2File {
			log.Infof("parsing alignments")
		}

		var skipped int
		var mu sync.Mutex
		ropt := &align.ReadOptions{
			Threads:   opt.NumCPUs,
			ChunkSize: chunkSize,
			TaxidMap:  taxidMap,
			OnError: func(err error) {
				mu.Lock()
				skipped++
				if skipped <= 10 {
					log.Warning(err)
				} else if skipped == 11 {
					log.Warning("more invalid records are skipped silently")
				}
				mu.Unlock()
			},
		}
		alns := loadAlignments(opt, files, ropt)

		if opt.Verbose || opt.Log2File {
			log.Infof("  %s aligned records of %s reads, %s unaligned records, %s records skipped",
				humanize.Comma(int64(alns.Records)), humanize.Comma(int64(alns.Len())),
				humanize.Comma(int64(alns.Unaligned)), humanize.Comma(int64(skipped)))
		}

		// ---------------------------------------------------------------
		// estimation

		if opt.Verbose || opt.Log2File {
			log.Infof("estimating abundances with EM (score: %s, epsilon: %g)", scoreMethod, emOpt.Epsilon)
		}

		result, err := em.TwoPhase(alns, score, parents, emOpt)
		checkError(err)

		info1 := newPhaseInfo(result.Model1, result.Phase1)
		info2 := newPhaseInfo(result.Model2, result.Phase2)
		if opt.Verbose || opt.Log2File {
			log.Infof("  round 1: %s", info1)
			if info2 != nil {
				log.Infof("  %d parent groups", len(result.Groups))
				log.Infof("  round 2: %s", info2)
			}
		}
		if !result.Phase1.Converged || (result.Phase2 != nil && !result.Phase2.Converged) {
			log.Warningf("EM stopped after reaching the maximum number of iterations (%d)", emOpt.MaxIterations)
		}

		sol := result.Final()

		// ---------------------------------------------------------------
		// output

		entries := em.Report(sol, names, topN)

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(strings.ToLower(outFile), ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		writeReport(outfh, entries, pretty)

		if binningFile != "" {
			checkError(writeBinning(binningFile, sampleID, sol))
			if opt.Verbose || opt.Log2File {
				log.Infof("binning result saved to: %s", binningFile)
			}
		}

		if statsFile != "" {
			pinfo := ProfileInfo{
				Version:   VERSION,
				SampleID:  sampleID,
				Files:     files,
				Score:     scoreMethod,
				Epsilon:   emOpt.Epsilon,
				Records:   alns.Records,
				Unaligned: alns.Unaligned,
				Skipped:   skipped,
				Phase1:    info1,
				Groups:    len(result.Groups),
				Phase2:    info2,
				Top:       em.TopTaxids(entries),
			}
			_, err = pinfo.WriteToFile(statsFile)
			checkError(err)
			if opt.Verbose || opt.Log2File {
				log.Infof("summary saved to: %s", statsFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(profileCmd)

	profileCmd.Flags().IntP("line-chunk-size", "", 5000,
		formatFlagUsage(`Number of lines to process for each thread.`))

	profileCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file ("-" for stdout), supports the ".gz" suffix.`))

	profileCmd.Flags().StringP("score", "", "match-ratio",
		formatFlagUsage(`Alignment quality of reads, available values: match-ratio, mapq.`))

	profileCmd.Flags().Float64P("epsilon", "e", em.DefaultOptions.Epsilon,
		formatFlagUsage(`Convergence threshold of EM.`))

	profileCmd.Flags().IntP("max-iter", "", em.DefaultOptions.MaxIterations,
		formatFlagUsage(`Maximal number of EM iterations of a round, 0 for no limit.`))

	profileCmd.Flags().BoolP("no-refine", "", false,
		formatFlagUsage(`Do not restrict candidates to one genome per parent taxon and run the second round.`))

	profileCmd.Flags().IntP("top", "n", em.DefaultTopN,
		formatFlagUsage(`Number of top genomes to output, 0 for all.`))

	profileCmd.Flags().BoolP("pretty", "", false,
		formatFlagUsage(`Output in a pretty table.`))

	// taxonomy
	profileCmd.Flags().StringSliceP("taxid-map", "T", []string{},
		formatFlagUsage(`Tabular two-column file(s) mapping reference IDs to TaxIds, for references without TaxIds.`))

	profileCmd.Flags().StringP("taxdump", "X", "",
		formatFlagUsage(`Directory of NCBI taxonomy dump files: names.dmp, nodes.dmp, optional with merged.dmp and delnodes.dmp.`))

	profileCmd.Flags().StringSliceP("name-map", "N", []string{},
		formatFlagUsage(`Tabular two-column file(s) mapping TaxIds to names, used when names are missing in taxdump.`))

	// other output
	profileCmd.Flags().StringP("sample-id", "s", "", formatFlagUsage(`Sample ID in result files.`))

	profileCmd.Flags().StringP("binning-result", "B", "", formatFlagUsage(`Save extra binning result in CAMI-like format.`))

	profileCmd.Flags().StringP("stats-file", "", "", formatFlagUsage(`Save a summary of the estimation in YAML format.`))

	profileCmd.SetUsageTemplate(usageTemplate("[-X <taxdump dir>] [-T <taxid.map>] [-o <profile>] <SAM/BAM files>"))
}
