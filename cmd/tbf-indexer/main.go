// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
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

// Command tbf-indexer builds a byte-offset index over a FASTA/FASTQ file
// and writes it to disk: tbf-indexer seqs_file index_file. No concurrency.
package main

import (
	"fmt"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/stable"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"

	"github.com/shenwei356/targetedbf/internal/clilog"
	"github.com/shenwei356/targetedbf/seqidx"
)

func init() {
	clilog.Init()
}

var rootCmd = &cobra.Command{
	Use:   "tbf-indexer seqs_file index_file",
	Short: "Build a byte-offset index over a FASTA/FASTQ file",
	Args:  cobra.ExactArgs(2),
	Run:   run,
}

func run(cmd *cobra.Command, args []string) {
	seqsFile, indexFile := args[0], args[1]

	ok, err := pathutil.Exists(seqsFile)
	clilog.CheckError(err)
	if !ok {
		clilog.CheckError(fmt.Errorf("no such file: %s", seqsFile))
	}

	idx, err := seqidx.Build(seqsFile)
	clilog.CheckError(err)

	out, err := os.Create(indexFile)
	clilog.CheckError(err)
	err = idx.Save(out)
	cerr := out.Close()
	clilog.CheckError(err)
	clilog.CheckError(cerr)

	style := &stable.TableStyle{
		Name:      "plain",
		HeaderRow: stable.RowStyle{Begin: "", Sep: "  ", End: ""},
		DataRow:   stable.RowStyle{Begin: "", Sep: "  ", End: ""},
		Padding:   "",
	}
	columns := []stable.Column{
		{Header: "seqs_file"},
		{Header: "index_file"},
		{Header: "records", Align: stable.AlignRight},
	}
	tbl := stable.New()
	tbl.HeaderWithFormat(columns)
	tbl.AddRow([]interface{}{seqsFile, indexFile, humanize.Comma(int64(idx.Len()))})
	os.Stdout.Write(tbl.Render(style))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
