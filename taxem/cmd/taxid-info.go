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

	"github.com/marinaRupe/FER.BCsThesis/taxem/cmd/em"
	"github.com/spf13/cobra"
)

var taxidInfoCmd = &cobra.Command{
	Use:   "taxid-info",
	Short: "Print parent, rank and name of TaxIds",
	Long: `Print parent, rank and name of TaxIds

This is useful for checking how genomes are grouped in the refinement
round: genomes sharing a parent belong to the same group, and TaxIds
without a parent form groups of their own.

Output format:
  taxid, parent, rank, name

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
			defer fhLog.Close()
		}

		taxdumpDir := expandPath(getFlagString(cmd, "taxdump"))
		if taxdumpDir == "" {
			checkError(fmt.Errorf("flag -X/--taxdump needed"))
		}
		nameMapFiles := getFlagStringSlice(cmd, "name-map")
		outFile := getFlagString(cmd, "out-file")

		taxids, err := parseTaxids(args)
		checkError(err)
		if len(taxids) == 0 {
			checkError(fmt.Errorf("no TaxIds given"))
		}

		lookup := taxonomyLookup{t: loadTaxonomy(opt, taxdumpDir)}
		names := em.Names{Primary: lookup}
		if len(nameMapFiles) > 0 {
			nameMap, err := readNameMaps(nameMapFiles)
			checkError(err)
			names.Secondary = em.NameMap(nameMap)
		}

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(strings.ToLower(outFile), ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		outfh.WriteString("taxid\tparent\trank\tname\n")
		var parent string
		for _, taxid := range taxids {
			if p, ok := lookup.ParentOf(taxid); ok {
				parent = fmt.Sprintf("%d", p)
			} else {
				parent = ""
			}
			name, ok := names.NameOf(taxid)
			if !ok {
				name = em.NoNameFound
			}
			fmt.Fprintf(outfh, "%d\t%s\t%s\t%s\n", taxid, parent, lookup.RankOf(taxid), name)
		}
	},
}

func init() {
	RootCmd.AddCommand(taxidInfoCmd)

	taxidInfoCmd.Flags().StringP("taxdump", "X", "",
		formatFlagUsage(`Directory of NCBI taxonomy dump files: names.dmp, nodes.dmp, optional with merged.dmp and delnodes.dmp.`))

	taxidInfoCmd.Flags().StringSliceP("name-map", "N", []string{},
		formatFlagUsage(`Tabular two-column file(s) mapping TaxIds to names, used when names are missing in taxdump.`))

	taxidInfoCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file ("-" for stdout).`))

	taxidInfoCmd.SetUsageTemplate(usageTemplate("-X <taxdump dir> <TaxIds>"))
}
